// Package session assembles one learner's runtime: it loads and reconciles
// the stored bundles, then runs the engine and the save manager side by
// side.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/engine"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/merge"
	"github.com/mera-platform/mera/internal/metrics"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/save"
	"github.com/mera-platform/mera/internal/storage"
	"github.com/mera-platform/mera/internal/trump"
)

// DefaultFlushTimeout bounds the final write after Run stops.
const DefaultFlushTimeout = 10 * time.Second

// Source names where a stored bundle came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// SourceReport describes what loading one store produced.
type SourceReport struct {
	Source Source `json:"source"`
	// Found is false when the store had no bundle or could not be read.
	Found bool `json:"found"`
	// LoadError is set when the store could not be read.
	LoadError string `json:"loadError,omitempty"`
	// Discarded means the bundle was recovered but belongs to another owner.
	Discarded bool `json:"discarded"`

	PerfectlyValidInput bool                                           `json:"perfectlyValidInput"`
	Sections            map[integrity.Section]integrity.SectionMetrics `json:"sections,omitempty"`
}

// Report summarises how the starting bundle was chosen.
type Report struct {
	SessionID string       `json:"sessionId"`
	Local     SourceReport `json:"local"`
	Remote    SourceReport `json:"remote"`
	// Fresh means no usable bundle was stored and the default was used.
	Fresh  bool `json:"fresh"`
	Merged bool `json:"merged"`
	// MergeFallbacks are components merged by the completeness heuristic.
	MergeFallbacks []model.ImmutableID `json:"mergeFallbacks,omitempty"`
}

// Session is one running learner runtime.
//
// CRITICAL: Run may be called once. Dispatch, Online and Critical are safe
// from any goroutine.
type Session struct {
	id      string
	reg     curriculum.Registry
	local   storage.Store
	remote  storage.Store
	engine  *engine.Engine
	saver   *save.Manager
	backups *save.Backups
	logger  *slog.Logger
	report  Report

	flushTimeout time.Duration
	critical     atomic.Pointer[save.CriticalFailure]
	closeStores  bool
}

type options struct {
	clock        clock.Clock
	logger       *slog.Logger
	ids          IDGenerator
	metrics      *metrics.Metrics
	preferOnTie  trump.Side
	flushTimeout time.Duration

	engineOpts []engine.Option
	saveOpts   []save.Option

	backups     bool
	backupOpts  []save.BackupOption
	onCritical  func(*save.CriticalFailure)
	closeStores bool
}

// Option configures Open.
type Option func(*options)

// WithClock sets the clock shared by the engine, save manager and backups.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the base logger. The session id is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator sets the session id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithMetrics reports engine, save and recovery events to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPreferOnTie picks the side that wins merge ties: trump.SideA is the
// local cache, trump.SideB the remote store. Default: remote.
func WithPreferOnTie(s trump.Side) Option {
	return func(o *options) { o.preferOnTie = s }
}

// WithEngineOptions passes options to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithSaveOptions passes options to save.New.
func WithSaveOptions(opts ...save.Option) Option {
	return func(o *options) { o.saveOpts = append(o.saveOpts, opts...) }
}

// WithBackups enables escape-hatch backups on the remote store.
func WithBackups(opts ...save.BackupOption) Option {
	return func(o *options) {
		o.backups = true
		o.backupOpts = append(o.backupOpts, opts...)
	}
}

// WithCriticalHandler is called, in addition to logging, when the save
// orchestration fails.
func WithCriticalHandler(fn func(*save.CriticalFailure)) Option {
	return func(o *options) { o.onCritical = fn }
}

// WithFlushTimeout bounds the final write after Run stops.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) { o.flushTimeout = d }
}

// withOwnedStores makes Close close both stores.
func withOwnedStores() Option {
	return func(o *options) { o.closeStores = true }
}

// Open loads the learner's bundle from both stores and builds a session
// ready to Run.
//
// Each stored bundle is recovered against reg. A bundle whose owner does not
// match is discarded. Two usable bundles are merged; none means a fresh
// default bundle. An unreadable store counts as empty, so a session can start
// offline.
func Open(ctx context.Context, reg curriculum.Registry, owner string, local, remote storage.Store, opts ...Option) (*Session, error) {
	o := options{
		clock:        clock.System{},
		logger:       slog.Default(),
		ids:          UUIDv7Generator{},
		preferOnTie:  trump.SideB,
		flushTimeout: DefaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		id:           o.ids.Generate(),
		reg:          reg,
		local:        local,
		remote:       remote,
		flushTimeout: o.flushTimeout,
		closeStores:  o.closeStores,
	}
	s.logger = o.logger.With("session_id", s.id)
	s.report.SessionID = s.id

	bundle, err := s.load(ctx, owner, o)
	if err != nil {
		return nil, err
	}
	state, err := manager.NewState(reg, bundle)
	if err != nil {
		return nil, fmt.Errorf("build state: %w", err)
	}

	saveOpts := []save.Option{
		save.WithClock(o.clock),
		save.WithLogger(s.logger),
		save.WithCriticalHandler(func(c *save.CriticalFailure) {
			s.critical.Store(c)
			if o.onCritical != nil {
				o.onCritical(c)
			}
		}),
	}
	engineOpts := []engine.Option{
		engine.WithClock(o.clock),
		engine.WithLogger(s.logger),
	}
	backupOpts := []save.BackupOption{
		save.WithBackupClock(o.clock),
		save.WithBackupLogger(s.logger),
	}
	if o.metrics != nil {
		saveOpts = append(saveOpts, save.WithObserver(o.metrics))
		engineOpts = append(engineOpts, engine.WithObserver(o.metrics))
		backupOpts = append(backupOpts, save.WithBackupObserver(o.metrics))
	}

	if o.backups {
		s.backups = save.NewBackups(remote, append(backupOpts, o.backupOpts...)...)
		if err := s.backups.Seed(ctx); err != nil {
			s.logger.Warn("could not seed backup schedule", "error", err)
		}
		saveOpts = append(saveOpts, save.WithBackups(s.backups))
	}

	s.saver = save.New(local, remote, append(saveOpts, o.saveOpts...)...)
	engineOpts = append(engineOpts, engine.WithSink(s.saver))
	s.engine = engine.New(reg, state, append(engineOpts, o.engineOpts...)...)

	s.logger.Info("session opened",
		"owner", owner,
		"fresh", s.report.Fresh,
		"merged", s.report.Merged)
	return s, nil
}

func (s *Session) load(ctx context.Context, owner string, o options) (model.Bundle, error) {
	localRes, localOK, err := s.recoverFrom(ctx, SourceLocal, s.local, owner, o.metrics, &s.report.Local)
	if err != nil {
		return model.Bundle{}, err
	}
	remoteRes, remoteOK, err := s.recoverFrom(ctx, SourceRemote, s.remote, owner, o.metrics, &s.report.Remote)
	if err != nil {
		return model.Bundle{}, err
	}

	switch {
	case localOK && remoteOK:
		merged, rep, err := merge.MergeWithReport(localRes.Bundle, remoteRes.Bundle,
			merge.OrderingHints{PreferOnTie: o.preferOnTie}, s.reg)
		if err != nil {
			return model.Bundle{}, fmt.Errorf("merge stored bundles: %w", err)
		}
		s.report.Merged = true
		s.report.MergeFallbacks = rep.Fallbacks
		return merged, nil
	case localOK:
		return localRes.Bundle, nil
	case remoteOK:
		return remoteRes.Bundle, nil
	default:
		s.report.Fresh = true
		return integrity.DefaultBundle(owner, s.reg), nil
	}
}

// recoverFrom loads and recovers one store's bundle. It reports false when
// there is nothing usable. The only error is a recovery defect.
func (s *Session) recoverFrom(
	ctx context.Context,
	src Source,
	store storage.Store,
	owner string,
	m *metrics.Metrics,
	rep *SourceReport,
) (integrity.Result, bool, error) {
	rep.Source = src

	raw, err := store.Load(ctx, model.BundleKey)
	switch {
	case storage.IsNotFound(err):
		return integrity.Result{}, false, nil
	case err != nil:
		rep.LoadError = err.Error()
		s.logger.Warn("stored bundle unreadable", "source", src, "error", err)
		return integrity.Result{}, false, nil
	}
	rep.Found = true

	res, err := integrity.Recover(raw, owner, s.reg)
	if err != nil {
		return integrity.Result{}, false, fmt.Errorf("recover %s bundle: %w", src, err)
	}
	if m != nil {
		m.ObserveRecovery(string(src), res)
	}
	rep.PerfectlyValidInput = res.PerfectlyValidInput
	rep.Sections = res.Sections

	if res.Critical.IdentityMismatch {
		rep.Discarded = true
		s.logger.Error("stored bundle belongs to another owner, discarding", "source", src)
		return integrity.Result{}, false, nil
	}
	if !res.PerfectlyValidInput {
		s.logger.Warn("stored bundle repaired", "source", src)
	}
	return res, true, nil
}

// Run runs the engine and the save manager until ctx ends or the engine
// fails, then flushes the latest snapshot. It returns nil on cancellation
// and the engine's error otherwise.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.engine.Run(gctx) })
	g.Go(func() error { return s.saver.Run(gctx) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
	defer cancel()
	if out, ferr := s.saver.Flush(flushCtx); ferr != nil {
		s.logger.Error("final save failed", "error", ferr)
	} else {
		s.logger.Info("session stopped", "last_outcome", out.String(), "online", s.saver.Online())
	}
	if s.backups != nil {
		s.backups.Wait()
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Close releases the stores if the session opened them.
func (s *Session) Close() error {
	if !s.closeStores {
		return nil
	}
	return errors.Join(s.local.Close(), s.remote.Close())
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Report returns how the starting bundle was chosen.
func (s *Session) Report() Report { return s.report }

// Engine returns the session's engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Saver returns the session's save manager.
func (s *Session) Saver() *save.Manager { return s.saver }

// Backups returns the backup writer, or nil when backups are disabled.
func (s *Session) Backups() *save.Backups { return s.backups }

// Dispatch forwards a UI event to the engine.
func (s *Session) Dispatch(ev engine.UIEvent) bool { return s.engine.Dispatch(ev) }

// Online reports whether the remote store accepted the last write.
func (s *Session) Online() bool { return s.saver.Online() }

// Critical returns the most recent save orchestration failure, if any.
func (s *Session) Critical() *save.CriticalFailure { return s.critical.Load() }
