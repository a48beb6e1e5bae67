package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrLockTimeout is returned when the per-identity lock cannot be acquired
// within the configured bounded wait. Callers treat it as transient.
var ErrLockTimeout = fmt.Errorf("session lock acquisition timed out")

// Arena owns every live Session keyed by user identity. All mutation of a given
// session is serialized through a per-identity lock while distinct identities
// proceed in parallel; idle expiry takes the same lock, so it can never race an
// in-flight turn for the same key.
type Arena struct {
	mu      sync.Mutex
	entries map[string]*entry

	idleTimeout  time.Duration
	historyLimit int
	lockWait     time.Duration
	logger       *zap.Logger
}

// entry pairs a session with its lock. The lock is a one-slot channel so that
// acquisition can be bounded by a timeout and waiters queue in FIFO order,
// preserving per-identity receipt ordering.
type entry struct {
	sem     chan struct{}
	sess    *Session
	removed bool // set under sem when the entry left the map; holders must re-resolve
}

// Options configures an Arena.
type Options struct {
	IdleTimeout  time.Duration
	HistoryLimit int
	LockWait     time.Duration
}

// NewArena creates an empty session arena.
func NewArena(opts Options, logger *zap.Logger) *Arena {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Hour
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{
		entries:      make(map[string]*entry),
		idleTimeout:  opts.IdleTimeout,
		historyLimit: opts.HistoryLimit,
		lockWait:     opts.LockWait,
		logger:       logger,
	}
}

// HistoryLimit returns the configured per-session history cap.
func (a *Arena) HistoryLimit() int { return a.historyLimit }

// IdleTimeout returns the configured idle expiry threshold.
func (a *Arena) IdleTimeout() time.Duration { return a.idleTimeout }

// Update runs fn against the session for identity under the per-identity lock,
// creating a fresh session first if none exists or the prior one expired. The
// name, when non-empty, refreshes the display name recorded at first contact.
func (a *Arena) Update(ctx context.Context, identity, name string, fn func(*Session)) error {
	if identity == "" {
		return fmt.Errorf("identity is required")
	}

	for {
		e := a.resolve(identity, name)

		if err := a.acquire(ctx, e); err != nil {
			return err
		}

		if e.removed {
			// Lost a race with End or the expiry sweep; the entry is no longer
			// in the map, so resolve a fresh one.
			a.release(e)
			continue
		}

		now := time.Now()
		if now.Sub(e.sess.LastActivity) > a.idleTimeout {
			a.logger.Info("recreating expired session",
				zap.String("identity", redactIdentity(identity)))
			e.sess = newSession(identity, name, now)
		}
		if name != "" && e.sess.Name != name {
			e.sess.Name = name
		}

		fn(e.sess)

		a.release(e)
		return nil
	}
}

// GetOrCreate returns a copy of the session for identity, creating and
// registering a fresh one in the main menu when none exists or the prior one
// expired. The copy is safe to read without holding any lock.
func (a *Arena) GetOrCreate(ctx context.Context, identity, name string) (Session, error) {
	var out Session
	err := a.Update(ctx, identity, name, func(s *Session) {
		out = s.clone()
	})
	return out, err
}

// Touch refreshes the last-activity timestamp.
func (a *Arena) Touch(ctx context.Context, identity string) error {
	return a.Update(ctx, identity, "", func(s *Session) {
		s.LastActivity = time.Now()
	})
}

// End removes the session for identity. Ending a session that does not exist is
// a no-op, not an error.
func (a *Arena) End(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("identity is required")
	}

	a.mu.Lock()
	e, ok := a.entries[identity]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	if err := a.acquire(ctx, e); err != nil {
		return err
	}
	defer a.release(e)

	if e.removed {
		return nil
	}

	a.mu.Lock()
	delete(a.entries, identity)
	a.mu.Unlock()
	e.removed = true

	a.logger.Info("session ended", zap.String("identity", redactIdentity(identity)))
	return nil
}

// ExpireIdle removes every session idle longer than threshold. Entries whose
// lock is held by an in-flight turn are skipped; that turn refreshes activity
// anyway. Side effect only; never errors.
func (a *Arena) ExpireIdle(now time.Time, threshold time.Duration) {
	a.mu.Lock()
	candidates := make(map[string]*entry, len(a.entries))
	for id, e := range a.entries {
		candidates[id] = e
	}
	a.mu.Unlock()

	expired := 0
	for id, e := range candidates {
		select {
		case e.sem <- struct{}{}:
		default:
			continue
		}

		if !e.removed && now.Sub(e.sess.LastActivity) > threshold {
			a.mu.Lock()
			delete(a.entries, id)
			a.mu.Unlock()
			e.removed = true
			expired++
		}
		a.release(e)
	}

	if expired > 0 {
		a.logger.Info("expired idle sessions", zap.Int("count", expired))
	}
}

// Snapshot returns a redacted view of every active session. Expiry is applied
// lazily first so stale sessions never show up. Sessions whose lock is held by
// an in-flight turn are skipped rather than read unsynchronized; they reappear
// on the next call.
func (a *Arena) Snapshot() []Summary {
	a.ExpireIdle(time.Now(), a.idleTimeout)

	a.mu.Lock()
	entries := make([]*entry, 0, len(a.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	a.mu.Unlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		select {
		case e.sem <- struct{}{}:
		default:
			continue
		}
		if !e.removed {
			s := e.sess
			out = append(out, Summary{
				Identity:     redactIdentity(s.Identity),
				Name:         s.Name,
				Menu:         s.Menu,
				Step:         s.Step,
				LastActivity: s.LastActivity,
				FilterCount:  s.Filter.FieldCount(),
			})
		}
		a.release(e)
	}
	return out
}

// Len reports the number of registered sessions, including not-yet-swept idle ones.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func (a *Arena) resolve(identity, name string) *entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[identity]
	if !ok {
		e = &entry{
			sem:  make(chan struct{}, 1),
			sess: newSession(identity, name, time.Now()),
		}
		a.entries[identity] = e
		a.logger.Info("created session",
			zap.String("identity", redactIdentity(identity)),
			zap.String("name", name))
	}
	return e
}

func (a *Arena) acquire(ctx context.Context, e *entry) error {
	timer := time.NewTimer(a.lockWait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arena) release(e *entry) {
	<-e.sem
}
