// Package save persists bundle snapshots in the background.
//
// The engine hands every changed snapshot to Manager.Queue. Manager polls on
// its own goroutine and writes the newest snapshot to a local cache and a
// remote store concurrently. A failing remote degrades the session to
// offline mode and is retried on every poll until it succeeds.
//
// CRITICAL: Poll, Run and Flush must be called from one goroutine. Queue,
// Online, InFlight and LastOutcome are safe from any goroutine.
package save

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/storage"
)

// DefaultPollInterval is how often Run polls for a queued snapshot.
const DefaultPollInterval = 50 * time.Millisecond

// Manager orchestrates dual writes of the latest queued snapshot.
type Manager struct {
	local   storage.Store
	remote  storage.Store
	key     string
	backups *Backups

	clock        clock.Clock
	logger       *slog.Logger
	observer     Observer
	onCritical   func(*CriticalFailure)
	pollInterval time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	slot []byte

	inFlight atomic.Bool
	online   atomic.Bool
	last     atomic.Int32
	results  chan result

	// Owned by the polling goroutine.
	savedLocal  string
	savedRemote string
	retry       bool
}

type result struct {
	digest    string
	localErr  error
	remoteErr error
	critical  *CriticalFailure
	elapsed   time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithKey sets the storage key written in both stores.
// Default: model.BundleKey.
func WithKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// WithClock sets the clock used for timing writes.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithCriticalHandler sets the function called when the orchestration
// panics. It runs on the polling goroutine.
func WithCriticalHandler(fn func(*CriticalFailure)) Option {
	return func(m *Manager) { m.onCritical = fn }
}

// WithPollInterval sets how often Run polls.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithWriteTimeout bounds each destination write. Zero, the default, means
// writes are never cancelled.
func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) { m.writeTimeout = d }
}

// WithBackups attaches an escape-hatch backup writer. It is offered every
// payload the remote store accepted.
func WithBackups(b *Backups) Option {
	return func(m *Manager) { m.backups = b }
}

// New returns a Manager writing to local and remote.
func New(local, remote storage.Store, opts ...Option) *Manager {
	m := &Manager{
		local:        local,
		remote:       remote,
		key:          model.BundleKey,
		clock:        clock.System{},
		logger:       slog.Default(),
		observer:     nopObserver{},
		pollInterval: DefaultPollInterval,
		results:      make(chan result, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.online.Store(true)
	return m
}

// Queue replaces the queued snapshot. It never blocks on I/O.
func (m *Manager) Queue(payload []byte) {
	m.mu.Lock()
	m.slot = payload
	m.mu.Unlock()
}

// Online reports whether the last remote write succeeded.
func (m *Manager) Online() bool {
	return m.online.Load()
}

// InFlight reports whether a dual write is running.
func (m *Manager) InFlight() bool {
	return m.inFlight.Load()
}

// LastOutcome returns the outcome of the most recent completed write.
func (m *Manager) LastOutcome() Outcome {
	return Outcome(m.last.Load())
}

// Run polls every poll interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll collects a finished write, then starts a new one if the queued
// snapshot has not reached both destinations. The write runs detached from
// ctx's cancellation.
func (m *Manager) Poll(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			m.retry = true
			m.escalate(&CriticalFailure{Op: "poll", Value: v, Stack: debug.Stack(), At: m.clock.Now()})
		}
	}()

	select {
	case r := <-m.results:
		m.apply(r)
	default:
	}

	if m.inFlight.Load() {
		return
	}
	payload, digest, ok := m.next()
	if !ok {
		return
	}

	m.inFlight.Store(true)
	detached := context.WithoutCancel(ctx)
	go func() {
		m.results <- m.write(detached, payload, digest)
	}()
}

// Flush waits for any in-flight write, then writes the queued snapshot
// synchronously if it is not yet saved. Sessions call it after Run returns.
func (m *Manager) Flush(ctx context.Context) (Outcome, error) {
	if m.inFlight.Load() {
		select {
		case r := <-m.results:
			m.apply(r)
		case <-ctx.Done():
			return m.LastOutcome(), ctx.Err()
		}
	}

	payload, digest, ok := m.next()
	if !ok {
		return m.LastOutcome(), nil
	}
	m.inFlight.Store(true)
	r := m.write(ctx, payload, digest)
	m.apply(r)
	if r.critical != nil {
		return m.LastOutcome(), r.critical
	}
	return m.LastOutcome(), nil
}

// next returns the queued snapshot if some destination still needs it.
func (m *Manager) next() ([]byte, string, bool) {
	m.mu.Lock()
	payload := m.slot
	m.mu.Unlock()

	if payload == nil {
		return nil, "", false
	}
	digest := model.Digest(payload)
	if !m.retry && digest == m.savedLocal && digest == m.savedRemote {
		return nil, "", false
	}
	return payload, digest, true
}

func (m *Manager) write(ctx context.Context, payload []byte, digest string) (r result) {
	r.digest = digest
	start := m.clock.Now()
	defer func() {
		if v := recover(); v != nil {
			r.critical = &CriticalFailure{Op: "write", Value: v, Stack: debug.Stack(), At: m.clock.Now()}
		}
		r.elapsed = m.clock.Now().Sub(start)
	}()

	var localErr, remoteErr error
	var g errgroup.Group
	g.Go(func() error {
		localErr = m.put(ctx, m.local, "local", payload)
		return nil
	})
	g.Go(func() error {
		remoteErr = m.put(ctx, m.remote, "remote", payload)
		return nil
	})
	_ = g.Wait()
	r.localErr, r.remoteErr = localErr, remoteErr

	// The backup is not part of the dual write; the next snapshot must not
	// wait for it.
	if remoteErr == nil && m.backups != nil {
		m.backups.Offer(ctx, payload)
	}
	return r
}

// put writes one destination. A panicking driver counts as a failed write.
func (m *Manager) put(ctx context.Context, store storage.Store, dest string, payload []byte) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%s store panicked: %v", dest, v)
		}
	}()

	if m.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.writeTimeout)
		defer cancel()
	}
	if err := store.Save(ctx, m.key, payload); err != nil {
		return fmt.Errorf("%s store: %w", dest, err)
	}
	return nil
}

func (m *Manager) apply(r result) {
	m.inFlight.Store(false)

	if r.critical != nil {
		m.retry = true
		m.escalate(r.critical)
		return
	}

	outcome := outcomeOf(r.localErr, r.remoteErr)
	if r.localErr == nil {
		m.savedLocal = r.digest
	}
	if r.remoteErr == nil {
		m.savedRemote = r.digest
	}
	m.retry = outcome != BothOK
	m.online.Store(r.remoteErr == nil)
	m.last.Store(int32(outcome))

	switch outcome {
	case BothOK:
		m.logger.Debug("snapshot saved", "digest", r.digest[:12], "elapsed", r.elapsed)
	case LocalOnly:
		m.logger.Warn("remote store unavailable, continuing offline", "error", r.remoteErr)
	case RemoteOnly:
		m.logger.Warn("local cache write failed", "error", r.localErr)
	case BothFailed:
		m.logger.Error("snapshot not saved", "local_error", r.localErr, "remote_error", r.remoteErr)
	}
	m.observer.ObserveWrite(outcome, r.elapsed)
}

func (m *Manager) escalate(c *CriticalFailure) {
	m.logger.Error("save orchestration failed", "op", c.Op, "panic", fmt.Sprint(c.Value))
	m.observer.ObserveCritical()
	if m.onCritical != nil {
		m.onCritical(c)
	}
}
