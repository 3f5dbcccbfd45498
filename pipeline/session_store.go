package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// StudyPack is the pair of final artifacts for one session. Ready is only
// true when both buffers were produced without error.
type StudyPack struct {
    NotesPDF    []byte
    MindMapPNG  []byte
    Ready       bool
    GeneratedAt time.Time
}

// SessionStore holds each session's latest study pack so download controls
// keep working between requests without re-running the pipeline. Entries are
// swapped wholesale on a successful run and never partially updated.
type SessionStore struct {
    mu       sync.RWMutex
    sessions map[string]*StudyPack
    logger   *slog.Logger

    // Prevent a second trigger from interleaving with an in-flight run for
    // the same session.
    running sync.Map

    cleanupTicker *time.Ticker
    stopCleanup   chan struct{}
}

func NewSessionStore(logger *slog.Logger) *SessionStore {
    return &SessionStore{
        sessions: make(map[string]*StudyPack),
        logger:   logger,
    }
}

func (s *SessionStore) Put(sessionID string, pack *StudyPack) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.sessions[sessionID] = pack
}

func (s *SessionStore) Get(sessionID string) (*StudyPack, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    pack, exists := s.sessions[sessionID]
    return pack, exists
}

// TryBeginRun reports whether the caller acquired the session's run slot.
func (s *SessionStore) TryBeginRun(sessionID string) bool {
    _, loaded := s.running.LoadOrStore(sessionID, struct{}{})
    return !loaded
}

func (s *SessionStore) EndRun(sessionID string) {
    s.running.Delete(sessionID)
}

// StartCleanup starts a goroutine that periodically drops study packs older
// than the threshold.
func (s *SessionStore) StartCleanup(threshold time.Duration, cleanupInterval time.Duration) {
    s.stopCleanup = make(chan struct{})
    s.cleanupTicker = time.NewTicker(cleanupInterval)

    go func() {
        for {
            select {
            case <-s.cleanupTicker.C:
                s.performCleanup(threshold)
            case <-s.stopCleanup:
                s.cleanupTicker.Stop()
                return
            }
        }
    }()
}

func (s *SessionStore) StopCleanup() {
    if s.stopCleanup != nil {
        close(s.stopCleanup)
    }
}

func (s *SessionStore) performCleanup(threshold time.Duration) {
    now := timeProvider.Now()
    s.mu.Lock()
    defer s.mu.Unlock()

    for sessionID, pack := range s.sessions {
        if !pack.GeneratedAt.IsZero() && now.Sub(pack.GeneratedAt) > threshold {
            delete(s.sessions, sessionID)
            s.logger.Info("Deleted expired study pack",
                slog.String("session_id", sessionID))
        }
    }
}
