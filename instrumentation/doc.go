// Package instrumentation provides OpenTelemetry instrumentation for the OAuth client.
//
// The client records metrics and spans for the authorization flow, the token
// endpoint round trips and the token store. Exporting is left to the embedding
// application: pass SDK providers through Config and the client uses them.
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	inst, err := instrumentation.New(instrumentation.Config{
//		Enabled:        true,
//		ServiceName:    "my-cli",
//		TracerProvider: tp,
//		ShutdownFuncs:  []func(context.Context) error{tp.Shutdown},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Security
//
// Authorization codes, access tokens and refresh tokens are never recorded.
// Spans carry client IDs, grant types, status codes and presence flags only.
//
// # Disabled Mode
//
// With Enabled false (the default) no-op providers are used and recording has
// no measurable cost.
package instrumentation
