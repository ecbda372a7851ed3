package sync

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Monitor watches reachability of the remote service by probing its
// health endpoint at a fixed interval and reports transitions (edges
// only) to the scheduler.
type Monitor struct {
	client   *http.Client
	url      string
	interval time.Duration
	onChange func(reachable bool)
	log      zerolog.Logger
}

// NewMonitor creates a reachability monitor for the given probe URL.
// onChange is invoked on every transition, plus once for the initial
// probe result.
func NewMonitor(probeURL string, interval, timeout time.Duration, onChange func(bool), logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		client:   &http.Client{Timeout: timeout},
		url:      probeURL,
		interval: interval,
		onChange: onChange,
		log:      logger.With().Str("component", "connectivity").Logger(),
	}
}

// Run probes until ctx is done. It blocks; callers run it in its own
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	known := false
	reachable := false
	for {
		now := m.probe(ctx)
		if !known || now != reachable {
			known = true
			reachable = now
			m.log.Info().Bool("reachable", reachable).Msg("connectivity changed")
			m.onChange(reachable)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// probe treats any HTTP response below 500 as reachable: the service
// answered, even if it disliked the request.
func (m *Monitor) probe(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, m.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
