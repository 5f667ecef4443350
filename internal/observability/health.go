package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Health tracks the state a /healthz probe needs: when the run loop
// last completed an iteration without error, and whether it is
// currently replaying history in recovery mode.
type Health struct {
	mu              sync.Mutex
	lastSuccess     time.Time
	recoveryMode    bool
	consecutiveFail int
}

func NewHealth() *Health {
	return &Health{}
}

func (h *Health) ReportSuccess(recovery bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSuccess = now()
	h.recoveryMode = recovery
	h.consecutiveFail = 0
}

func (h *Health) ReportFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFail++
}

type healthStatus struct {
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	RecoveryMode        bool       `json:"recoveryMode"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	Healthy             bool       `json:"healthy"`
}

// unhealthyAfter bounds how long the bot may go without a successful
// iteration before /healthz starts failing.
const unhealthyAfter = 10 * time.Minute

func (h *Health) snapshot() healthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := healthStatus{
		RecoveryMode:        h.recoveryMode,
		ConsecutiveFailures: h.consecutiveFail,
	}
	if !h.lastSuccess.IsZero() {
		ls := h.lastSuccess
		st.LastSuccess = &ls
		st.Healthy = now().Sub(ls) < unhealthyAfter
	}
	return st
}

var now = time.Now

func (h *Health) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := h.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if !st.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	}
}

// Serve runs an HTTP server exposing /metrics (Prometheus) and
// /healthz until ctx is cancelled. Addr empty disables the server.
func Serve(ctx context.Context, addr string, metrics *Metrics, health *Health, log *zap.Logger) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("observability server exited", zap.Error(err))
		return err
	}
}
