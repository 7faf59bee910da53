package core

// scheduler.go runs background maintenance for the session store.
//
// The only job is the idle-session reaper: sessions hold an entire dataset in
// memory, so any session untouched for longer than the TTL is evicted along
// with its history. The reaper is context-aware for graceful shutdown and
// logs failures without stopping.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultReapInterval is how often the reaper runs when none is configured.
const DefaultReapInterval = 5 * time.Minute

// ReaperConfig holds configuration for the session reaper.
type ReaperConfig struct {
	TTL           time.Duration // Idle time before eviction (default: Options.SessionTTL)
	CheckInterval time.Duration // How often to run (default: 5m)
}

// StartSessionReaper evicts idle sessions every CheckInterval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartSessionReaper(ctx context.Context, cfg ReaperConfig) {
	if cfg.TTL <= 0 {
		cfg.TTL = s.opts.SessionTTL
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultReapInterval
	}

	slog.Info("session reaper started",
		"ttl", cfg.TTL.String(),
		"interval", cfg.CheckInterval.String(),
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopped")
			return
		case now := <-ticker.C:
			s.runReapJob(ctx, now, cfg.TTL)
		}
	}
}

// runReapJob performs one eviction pass.
func (s *Service) runReapJob(ctx context.Context, now time.Time, ttl time.Duration) {
	start := time.Now()
	evicted := s.ReapIdle(ctx, now.Add(-ttl))
	if len(evicted) == 0 {
		slog.Debug("reap job completed", "evicted", 0)
		return
	}
	slog.Info("evicted idle sessions",
		"evicted", len(evicted),
		"remaining", s.SessionCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// ReapIdle removes every session last used before cutoff and returns their
// ids. History purge failures are logged; the session is gone regardless.
func (s *Service) ReapIdle(ctx context.Context, cutoff time.Time) []string {
	var evicted []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.activeSessions.Set(float64(n))
	s.metrics.sessionsEvicted.Add(float64(len(evicted)))

	for _, id := range evicted {
		if err := s.history.Purge(ctx, id); err != nil {
			slog.Error("history purge failed", "session_id", id, "error", err)
		}
	}
	return evicted
}
