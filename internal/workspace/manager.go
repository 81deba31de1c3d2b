package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager hands out one Workspace per session id.
type Manager struct {
	svc    InvoiceService
	logger *slog.Logger
	opts   []Option

	mu       sync.Mutex
	sessions map[string]*Workspace
}

func NewManager(svc InvoiceService, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		svc:      svc,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*Workspace),
	}
}

// Get returns the session's workspace, creating it and restoring its draft on first
// use. Concurrent callers for a new session wait until the draft is restored.
func (m *Manager) Get(ctx context.Context, id string) *Workspace {
	m.mu.Lock()
	w, ok := m.sessions[id]
	if !ok {
		w = New(id, m.svc, m.logger, m.opts...)
		m.sessions[id] = w
	}
	m.mu.Unlock()

	if err := w.restoreOnce(ctx); err != nil && !ok {
		m.logger.Warn("workspace.restore.failed", "session_id", id, "error", err)
	}
	return w
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops workspaces idle for longer than maxIdle. Their drafts stay in storage
// and are restored on the next visit.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, w := range m.sessions {
		if w.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Info("workspace.prune", "removed", n, "remaining", len(m.sessions))
	}
	return n
}
