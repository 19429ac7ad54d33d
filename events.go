package oauth

import "sync"

// EventSink receives flow notifications. Both methods are required and fire
// exactly once per successful exchange or refresh.
//
// A sink may additionally implement AuthorizationCodeReceiver,
// CancellationReceiver and FailureReceiver.
type EventSink interface {
	AccessTokenReceived(c *Client)
	AccessTokenRefreshed(c *Client)
}

// AuthorizationCodeReceiver is notified when a redirect delivered a code,
// before the exchange completes.
type AuthorizationCodeReceiver interface {
	AuthorizationCodeReceived(c *Client)
}

// CancellationReceiver is notified when the user cancelled the authorization.
type CancellationReceiver interface {
	AuthorizationCancelled(c *Client)
}

// FailureReceiver is notified of every failed exchange, refresh or callback.
// err matches one of ErrMalformedResponse, ErrTokenExchangeFailed,
// ErrRefreshFailed or ErrInvalidCallback.
type FailureReceiver interface {
	AuthorizationFailed(c *Client, err error)
}

// SinkFuncs is an EventSink built from optional functions.
type SinkFuncs struct {
	OnAuthorizationCodeReceived func(c *Client)
	OnAccessTokenReceived       func(c *Client)
	OnAccessTokenRefreshed      func(c *Client)
	OnAuthorizationCancelled    func(c *Client)
	OnAuthorizationFailed       func(c *Client, err error)
}

var (
	_ EventSink                 = SinkFuncs{}
	_ AuthorizationCodeReceiver = SinkFuncs{}
	_ CancellationReceiver      = SinkFuncs{}
	_ FailureReceiver           = SinkFuncs{}
)

func (s SinkFuncs) AuthorizationCodeReceived(c *Client) {
	if s.OnAuthorizationCodeReceived != nil {
		s.OnAuthorizationCodeReceived(c)
	}
}

func (s SinkFuncs) AccessTokenReceived(c *Client) {
	if s.OnAccessTokenReceived != nil {
		s.OnAccessTokenReceived(c)
	}
}

func (s SinkFuncs) AccessTokenRefreshed(c *Client) {
	if s.OnAccessTokenRefreshed != nil {
		s.OnAccessTokenRefreshed(c)
	}
}

func (s SinkFuncs) AuthorizationCancelled(c *Client) {
	if s.OnAuthorizationCancelled != nil {
		s.OnAuthorizationCancelled(c)
	}
}

func (s SinkFuncs) AuthorizationFailed(c *Client, err error) {
	if s.OnAuthorizationFailed != nil {
		s.OnAuthorizationFailed(c, err)
	}
}

type nopSink struct{}

func (nopSink) AccessTokenReceived(*Client)  {}
func (nopSink) AccessTokenRefreshed(*Client) {}

// dispatcher delivers events on a single goroutine in enqueue order. The
// queue is unbounded so enqueueing never blocks a state transition.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.queue = nil
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// close stops delivery. Events still queued are dropped.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.cond.Broadcast()
}
