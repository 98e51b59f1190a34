// Package health implements Kubernetes-style liveness and readiness probes.
//
// Registered checks run on a shared ticker goroutine; their results are
// cached and served by the HTTP endpoints, so probes never block on a slow
// dependency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type probeKind int

const (
	probeLiveness probeKind = iota
	probeReadiness
)

type probe struct {
	name    string
	kind    probeKind
	timeout time.Duration
	check   CheckFunc

	// lastErr holds the result of the most recent run. Written by the ticker
	// goroutine, read by HTTP handlers.
	lastErr atomic.Pointer[error]
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)
}

func (p *probe) failure() string {
	errp := p.lastErr.Load()
	if errp == nil || *errp == nil {
		return ""
	}
	return (*errp).Error()
}

// Service runs health checks and serves probe endpoints.
type Service struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// NewService creates a Service in the not-ready state. Call SetReady(true)
// once initialization finishes.
func NewService() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check served by LiveEndpoint.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.add(&probe{name: name, kind: probeLiveness, timeout: timeout, check: check})
}

// AddReadinessCheck registers a check served by ReadyEndpoint.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.add(&probe{name: name, kind: probeReadiness, timeout: timeout, check: check})
}

func (s *Service) add(p *probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
}

// Start runs every registered check once, then again each interval, until the
// context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	probes := make([]*probe, len(s.probes))
	copy(probes, s.probes)
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, p := range probes {
			p.run(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, p := range probes {
					p.run(ctx)
				}
			}
		}
	}()
}

// Stop cancels the background check loop. Safe to call multiple times.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Pass false during graceful
// shutdown to drain traffic before the listener closes.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the service has been marked ready and every
// readiness check passed on its last run.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	return len(s.failures(probeReadiness)) == 0
}

func (s *Service) failures(kind probeKind) map[string]string {
	s.mu.RLock()
	probes := s.probes
	s.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range probes {
		if p.kind != kind {
			continue
		}
		if msg := p.failure(); msg != "" {
			out[p.name] = msg
		}
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez probe: 200 when all liveness checks pass,
// 503 with per-check failures otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, s.failures(probeLiveness))
}

// ReadyEndpoint serves the /readyz probe. It requires both the manual ready
// gate and every readiness check.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := s.failures(probeReadiness)
	if !s.ready.Load() {
		failures["_ready"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
