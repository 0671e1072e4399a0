package cmd

import (
	"KernelProfiler/pkg/render"
	"KernelProfiler/pkg/telemetry"
	"KernelProfiler/pkg/utils"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// kernelSession tracks one in-flight kernel per stream.
type kernelSession struct {
	id        string
	kernel    string
	startedAt time.Time
}

// server holds the HTTP server state
type server struct {
	ctx       *CmdContext
	startedAt time.Time
	sessions  map[string]*kernelSession
	mu        sync.Mutex
}

func newServer(ctx *CmdContext) *server {
	return &server{
		ctx:       ctx,
		startedAt: time.Now(),
		sessions:  make(map[string]*kernelSession),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/kernel/start", s.handleStart)
	mux.HandleFunc("/kernel/stop", s.handleStop)
	mux.HandleFunc("/kernel/metrics", s.handleMetrics)
	mux.HandleFunc("/kernel/card", s.handleCard)
	mux.HandleFunc("/kernels", s.handleKernels)
	mux.HandleFunc("/static", s.handleStatic)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	return mux
}

func Serve(args []string) {
	ctx, cleanup := InitCmd("serve", args)
	defer cleanup()

	srv := newServer(ctx)
	addr := fmt.Sprintf(":%d", ctx.Config.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx.Log.Info("HTTP server listening", zap.String("addr", addr))
	ctx.Log.Info("Endpoints",
		zap.Strings("routes", []string{
			"POST /kernel/start?name=&stream=",
			"POST /kernel/stop?stream=",
			"GET  /kernel/metrics?name=&stream=",
			"GET  /kernel/card?name=&stream=",
			"GET  /kernels",
			"GET  /static",
			"GET  /health",
			"GET  /info",
		}))

	if err := httpServer.ListenAndServe(); err != nil {
		ctx.Log.Error("Server failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *server) stream(r *http.Request) string {
	if stream := r.URL.Query().Get("stream"); stream != "" {
		return stream
	}
	return s.ctx.Config.Stream
}

// existing returns the collector for the request's stream. Only
// /kernel/start creates collectors; unknown streams answer 404.
func (s *server) existing(w http.ResponseWriter, r *http.Request) (*telemetry.Collector, bool) {
	stream := s.stream(r)
	c, ok := s.ctx.Manager.Lookup(stream)
	if !ok {
		http.Error(w, "Unknown stream "+stream, http.StatusNotFound)
	}
	return c, ok
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	stream := s.stream(r)
	c := s.ctx.Manager.Collector(stream)
	sess := &kernelSession{id: utils.NewRunID(), kernel: name, startedAt: time.Now()}

	s.mu.Lock()
	s.sessions[stream] = sess
	c.StartCollection(name)
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"sessionId": sess.id,
		"stream":    stream,
		"kernel":    name,
		"startedAt": sess.startedAt.UnixMilli(),
	})
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stream := s.stream(r)

	s.mu.Lock()
	sess, ok := s.sessions[stream]
	delete(s.sessions, stream)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "No kernel in flight on stream "+stream, http.StatusConflict)
		return
	}

	// The counter read happens here, outside the server lock.
	c, ok := s.existing(w, r)
	if !ok {
		return
	}
	c.StopCollection()

	writeJSON(w, map[string]interface{}{
		"sessionId": sess.id,
		"stream":    stream,
		"metrics":   c.GetMetrics(sess.kernel),
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	c, ok := s.existing(w, r)
	if !ok {
		return
	}
	writeJSON(w, c.GetMetrics(name))
}

func (s *server) handleCard(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	c, ok := s.existing(w, r)
	if !ok {
		return
	}
	m := c.GetMetrics(name)
	if m.KernelName == "" {
		http.Error(w, "No snapshot for kernel "+name, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	render.RenderCard(w, m)
}

func (s *server) handleKernels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"kernels": s.ctx.Manager.Records(),
	})
}

func (s *server) handleStatic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctx.Manager.GetStatic())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	streams := s.ctx.Manager.Streams()
	active := make(map[string]string)
	for _, stream := range streams {
		if c, ok := s.ctx.Manager.Lookup(stream); ok {
			if k := c.ActiveKernel(); k != "" {
				active[stream] = k
			}
		}
	}

	info := map[string]interface{}{
		"runId":         s.ctx.Config.RunID,
		"streams":       streams,
		"activeKernels": active,
		"backendState":  telemetry.StateUnavailable.String(),
		"uptimeMs":      time.Since(s.startedAt).Milliseconds(),
	}
	if def, ok := s.ctx.Manager.Lookup(s.ctx.Config.Stream); ok {
		info["backendState"] = def.BackendState().String()
		info["boundCounters"] = def.BoundCounters()
		info["callbackEvents"] = def.CallbackEvents()
	}
	writeJSON(w, info)
}
