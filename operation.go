package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/giantswarm/oauth-client/token"
)

// OperationKind tells exchange and refresh operations apart.
type OperationKind int

const (
	OperationExchange OperationKind = iota
	OperationRefresh
)

func (k OperationKind) String() string {
	switch k {
	case OperationExchange:
		return "exchange"
	case OperationRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("OperationKind(%d)", int(k))
	}
}

// Operation is an in-flight token request. It is tracked by the client
// until it completes and can be awaited by any number of callers.
type Operation struct {
	id      ksuid.KSUID
	kind    OperationKind
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	tok  *token.AccessToken
	err  error
}

// newOperation derives the request context from parent without its
// cancellation: the request outlives the call that started it and ends on
// completion or Client.Close.
func newOperation(parent context.Context, kind OperationKind, now time.Time) *Operation {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Operation{
		id:      ksuid.New(),
		kind:    kind,
		started: now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// ID returns a unique, time-ordered operation identifier.
func (o *Operation) ID() string { return o.id.String() }

// Kind returns whether this is an exchange or a refresh.
func (o *Operation) Kind() OperationKind { return o.kind }

// Started returns when the operation was registered.
func (o *Operation) Started() time.Time { return o.started }

// Done is closed when the operation completes.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Wait blocks until the operation completes or ctx ends. Abandoning the wait
// does not cancel the operation.
func (o *Operation) Wait(ctx context.Context) (*token.AccessToken, error) {
	select {
	case <-o.done:
		return o.tok, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Operation) finish(tok *token.AccessToken, err error) {
	o.once.Do(func() {
		o.tok, o.err = tok, err
		o.cancel()
		close(o.done)
	})
}
