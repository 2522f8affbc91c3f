// Package shutdown coordinates graceful process termination.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("storage", func(context.Context) error { return engine.Close() })
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//	<-ctx.Done()
//	err := h.Shutdown(context.Background())
package shutdown
