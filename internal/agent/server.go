package agent

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spuff-dev/spuff/internal/schema"
)

// Agent wires every piece spuffd needs — config, activity clock, status
// store, metrics collector, Prometheus registry, bootstrap watcher, the
// setup executor, and the idle watchdog — behind one Run(ctx) entrypoint.
type Agent struct {
	cfg       Config
	log       *zap.Logger
	activity  *Activity
	status    *StatusStore
	collector Collector
	prom      *PromRegistry
	bw        *BootstrapWatcher
	executor  *Executor
	watchdog  *Watchdog
}

// New builds an Agent from cfg. It does not start listening; call Run.
func New(cfg Config, log *zap.Logger) (*Agent, error) {
	status, err := OpenStatusStore(cfg.StatusPath)
	if err != nil {
		return nil, err
	}

	prom := NewPromRegistry()
	activity := NewActivity()

	start := time.Now()
	var observeReady sync.Once
	bw, err := NewBootstrapWatcher(cfg.BootstrapStatusPath, func(s schema.BootstrapStatus) {
		if s == schema.BootstrapReady {
			observeReady.Do(func() {
				prom.BootstrapDuration.Observe(time.Since(start).Seconds())
			})
		}
	})
	if err != nil {
		return nil, err
	}

	executor, err := NewExecutor(cfg, status, prom)
	if err != nil {
		bw.Close()
		return nil, err
	}

	watchdog := NewWatchdog(activity, status, prom, bw, cfg.IdleTimeout)

	return &Agent{
		cfg:      cfg,
		log:      log,
		activity: activity,
		status:   status,
		prom:     prom,
		bw:       bw,
		executor: executor,
		watchdog: watchdog,
	}, nil
}

// Run starts the HTTP listener and the idle watchdog, blocking until ctx
// is canceled or the listener fails.
func (a *Agent) Run(ctx context.Context) error {
	defer a.bw.Close()

	go a.watchdog.Run(ctx)

	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("spuffd listening", zap.String("addr", a.cfg.ListenAddr), zap.Duration("idle_timeout", a.cfg.IdleTimeout))

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		a.log.Error("http server exited", zap.Error(err))
		return err
	}
}

func (a *Agent) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	auth := r.NewRoute().Subrouter()
	auth.Use(a.authMiddleware)

	auth.HandleFunc("/status", a.handleStatus).Methods(http.MethodGet)
	auth.HandleFunc("/metrics", a.handleMetrics).Methods(http.MethodGet)
	auth.HandleFunc("/metrics/prom", a.handleMetricsProm).Methods(http.MethodGet)
	auth.HandleFunc("/processes", a.handleProcesses).Methods(http.MethodGet)
	auth.HandleFunc("/exec", a.handleExec).Methods(http.MethodPost)
	auth.HandleFunc("/heartbeat", a.handleHeartbeat).Methods(http.MethodPost)
	auth.HandleFunc("/logs", a.handleLogs).Methods(http.MethodGet)
	auth.HandleFunc("/cloud-init", a.handleCloudInit).Methods(http.MethodGet)
	auth.HandleFunc("/project/config", a.handleProjectConfig).Methods(http.MethodGet)
	auth.HandleFunc("/project/status", a.handleProjectStatus).Methods(http.MethodGet)
	auth.HandleFunc("/project/setup", a.handleProjectSetup).Methods(http.MethodPost)

	return r
}

// authMiddleware checks X-Spuff-Token in constant time, then — except for
// /heartbeat, which has its own explicit activity semantics below —
// touches the activity clock, since any authenticated call is evidence
// the VM is in use.
func (a *Agent) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Spuff-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.cfg.Token)) != 1 || a.cfg.Token == "" {
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/heartbeat" {
			a.activity.Touch()
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(schema.ErrorResponse{Error: msg})
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, schema.HealthResponse{Status: "ok", Service: "spuffd", Version: a.cfg.Version})
}

func (a *Agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()
	st := a.status.Get()
	boot := a.bw.Current()

	jsonResponse(w, schema.StatusResponse{
		UptimeSeconds:    int64(a.activity.Uptime().Seconds()),
		IdleSeconds:      int64(a.activity.IdleFor().Seconds()),
		Hostname:         hostname,
		CloudInitDone:    boot == schema.BootstrapReady || boot == schema.BootstrapFailed,
		BootstrapStatus:  string(boot),
		BootstrapReady:   boot == schema.BootstrapReady,
		AgentVersion:     a.cfg.Version,
		DestroyRequested: st.DestroyRequested,
	})
}

func (a *Agent) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := a.collector.Sample(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, m)
}

func (a *Agent) handleMetricsProm(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(a.prom.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (a *Agent) handleProcesses(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	procs, err := a.collector.TopProcesses(r.Context(), n)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, procs)
}

func (a *Agent) handleExec(w http.ResponseWriter, r *http.Request) {
	var req schema.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		jsonError(w, "command is required", http.StatusBadRequest)
		return
	}

	timeout := time.Duration(req.TimeoutSecs) * time.Second
	res, err := runCommand(r.Context(), runOpts{Command: req.Command, Timeout: timeout})
	if err != nil {
		a.log.Warn("exec failed", zap.String("command", req.Command), zap.Error(err))
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.log.Info("exec completed", zap.String("command", req.Command), zap.Int("exit_code", res.ExitCode))

	jsonResponse(w, schema.ExecResponse{
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (a *Agent) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	a.activity.Touch()
	jsonResponse(w, schema.HeartbeatResponse{Timestamp: time.Now()})
}

func (a *Agent) handleLogs(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		jsonError(w, "file query parameter is required", http.StatusBadRequest)
		return
	}
	n := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	lines, err := TailFile(file, n)
	if err != nil {
		if err == ErrLogOutsideWhitelist {
			jsonError(w, err.Error(), http.StatusForbidden)
			return
		}
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, lines)
}

func (a *Agent) handleCloudInit(w http.ResponseWriter, r *http.Request) {
	status := a.bw.Current()
	ready := status == schema.BootstrapReady
	jsonResponse(w, schema.CloudInitResponse{
		Status: string(status),
		Done:   ready || status == schema.BootstrapFailed,
	})
}

func (a *Agent) handleProjectConfig(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(a.cfg.ProjectSpecPath)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (a *Agent) handleProjectStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, a.status.Get())
}

func (a *Agent) handleProjectSetup(w http.ResponseWriter, r *http.Request) {
	switch a.executor.Start(r.Context()) {
	case SetupNewlyStarted:
		w.WriteHeader(http.StatusAccepted)
		jsonResponse(w, schema.SetupResponse{Status: "started"})
	case SetupAlreadyRunning:
		jsonResponse(w, schema.SetupResponse{Status: "in_progress"})
	case SetupAlreadyComplete:
		jsonResponse(w, schema.SetupResponse{Status: "complete"})
	}
}
