package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB        Pinger
	Transport string
	Queue     bool
	Timeout   time.Duration
}

// NewService constructs a new health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger, transport string, queue bool) *Service {
	return &Service{DB: db, Transport: transport, Queue: queue, Timeout: 2 * time.Second}
}

// Status reports readiness. ok is false only when a configured database does
// not answer.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	storage := "memory"
	ok := true
	if s.DB != nil {
		storage = "postgres"
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.DB.PingContext(pctx); err != nil {
			storage = "unreachable"
			ok = false
		}
	}
	return map[string]any{
		"ok":        ok,
		"storage":   storage,
		"transport": s.Transport,
		"queue":     s.Queue,
	}, ok
}
