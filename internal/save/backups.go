package save

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/storage"
)

const (
	// DefaultRetain is how many backups are kept.
	DefaultRetain = 20

	// DefaultBackupInterval is the minimum spacing between backups.
	DefaultBackupInterval = time.Hour

	backupMarker = "ehb"
	backupExt    = ".json"
)

// BackupInfo describes one backup key.
type BackupInfo struct {
	Key     string
	Version model.Version
	Time    time.Time
}

// BackupName returns the key for a backup of version v taken at t:
// <product>.<major>.<minor>.<patch>.ehb.<unixMillis>.json.
func BackupName(v model.Version, t time.Time) string {
	return fmt.Sprintf("%s.%s.%s.%d%s", model.Product, v, backupMarker, t.UnixMilli(), backupExt)
}

// ParseBackupName reverses BackupName. It reports false for any other key.
func ParseBackupName(key string) (BackupInfo, bool) {
	rest, ok := strings.CutSuffix(key, backupExt)
	if !ok {
		return BackupInfo{}, false
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 6 || parts[0] != model.Product || parts[4] != backupMarker {
		return BackupInfo{}, false
	}

	var nums [4]int64
	for i, p := range []string{parts[1], parts[2], parts[3], parts[5]} {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return BackupInfo{}, false
		}
		nums[i] = n
	}
	return BackupInfo{
		Key:     key,
		Version: model.Version{Major: int(nums[0]), Minor: int(nums[1]), Patch: int(nums[2])},
		Time:    time.UnixMilli(nums[3]).UTC(),
	}, true
}

// backupPattern matches every backup of any version.
var backupPattern = model.Product + ".*." + backupMarker + ".*" + backupExt

// Backups writes rate-limited escape-hatch snapshots to a store and keeps
// only the newest few.
//
// Thread-safety: safe for concurrent use.
type Backups struct {
	store    storage.Store
	retain   int
	interval time.Duration
	version  model.Version
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer
	limiter  *rate.Limiter

	background sync.WaitGroup
}

// BackupOption configures Backups.
type BackupOption func(*Backups)

// WithRetain sets how many backups Prune keeps. Values below 1 are ignored.
func WithRetain(n int) BackupOption {
	return func(b *Backups) {
		if n > 0 {
			b.retain = n
		}
	}
}

// WithBackupInterval sets the minimum spacing between backups.
func WithBackupInterval(d time.Duration) BackupOption {
	return func(b *Backups) { b.interval = d }
}

// WithBackupVersion sets the version written into backup names.
func WithBackupVersion(v model.Version) BackupOption {
	return func(b *Backups) { b.version = v }
}

// WithBackupClock sets the clock used for names and rate limiting.
func WithBackupClock(c clock.Clock) BackupOption {
	return func(b *Backups) { b.clock = c }
}

// WithBackupLogger sets the logger.
func WithBackupLogger(l *slog.Logger) BackupOption {
	return func(b *Backups) { b.logger = l }
}

// WithBackupObserver sets the metrics observer.
func WithBackupObserver(o Observer) BackupOption {
	return func(b *Backups) { b.observer = o }
}

// NewBackups returns a backup writer for store. Call Seed before the first
// MaybeWrite so that a restart does not immediately write another backup.
func NewBackups(store storage.Store, opts ...BackupOption) *Backups {
	b := &Backups{
		store:    store,
		retain:   DefaultRetain,
		interval: DefaultBackupInterval,
		version:  model.RuntimeVersion,
		clock:    clock.System{},
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.limiter = rate.NewLimiter(rate.Every(b.interval), 1)
	return b
}

// Seed spends the limiter's token at the time of the newest existing backup.
func (b *Backups) Seed(ctx context.Context) error {
	list, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	b.limiter.AllowN(list[0].Time, 1)
	return nil
}

// MaybeWrite stores payload as a new backup unless one was written within
// the interval. A failed write does not consume the allowance.
func (b *Backups) MaybeWrite(ctx context.Context, payload []byte) (string, bool, error) {
	now := b.clock.Now()
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() || r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return "", false, nil
	}

	key := BackupName(b.version, now)
	if err := b.store.Save(ctx, key, payload); err != nil {
		r.CancelAt(now)
		b.observer.ObserveBackup(false)
		return "", false, fmt.Errorf("write backup %s: %w", key, err)
	}
	b.observer.ObserveBackup(true)

	b.background.Add(1)
	go func() {
		defer b.background.Done()
		if deleted, err := b.Prune(context.WithoutCancel(ctx)); err != nil {
			b.logger.Warn("backup prune incomplete", "deleted", len(deleted), "error", err)
		}
	}()
	return key, true, nil
}

// Offer runs MaybeWrite on its own goroutine so that a slow backup store
// never holds up the caller. Wait collects it.
func (b *Backups) Offer(ctx context.Context, payload []byte) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		if key, ok, err := b.MaybeWrite(context.WithoutCancel(ctx), payload); err != nil {
			b.logger.Warn("backup failed", "error", err)
		} else if ok {
			b.logger.Info("backup written", "key", key)
		}
	}()
}

// List returns every backup in the store, newest first.
func (b *Backups) List(ctx context.Context) ([]BackupInfo, error) {
	keys, err := b.store.List(ctx, backupPattern)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	out := make([]BackupInfo, 0, len(keys))
	for _, k := range keys {
		if info, ok := ParseBackupName(k); ok {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(x, y BackupInfo) int {
		if c := y.Time.Compare(x.Time); c != 0 {
			return c
		}
		return cmp.Compare(y.Key, x.Key)
	})
	return out, nil
}

// Prune deletes all but the newest retained backups and returns the deleted
// keys. It keeps going past individual delete failures.
func (b *Backups) Prune(ctx context.Context) ([]string, error) {
	list, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) <= b.retain {
		return nil, nil
	}

	var deleted []string
	var errs []error
	for _, info := range list[b.retain:] {
		if err := b.store.Delete(ctx, info.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
			continue
		}
		deleted = append(deleted, info.Key)
	}
	return deleted, errors.Join(errs...)
}

// Wait blocks until offered backups and background prunes finish.
func (b *Backups) Wait() {
	b.background.Wait()
}
