// Package shutdown coordinates process termination.
//
// Components register named hooks as they start. On SIGINT, SIGTERM or
// an explicit Trigger the hooks run in reverse registration order under
// one shared timeout, so teardown mirrors startup:
//
//	h := shutdown.NewHandler(30*time.Second, log)
//	h.OnShutdown("store", store.Close)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
