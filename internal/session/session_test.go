package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/config"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/engine"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/metrics"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/save"
	"github.com/mera-platform/mera/internal/storage/memory"
	"github.com/mera-platform/mera/internal/testutil"
)

const owner = "https://alice.example/profile#me"

type fixture struct {
	reg    *curriculum.Static
	local  *memory.Store
	remote *memory.Store
	clock  *testutil.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		reg:    testutil.Registry(t),
		local:  memory.New(),
		remote: memory.New(),
		clock:  testutil.NewFakeClock(time.Time{}),
	}
}

func (f *fixture) open(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithClock(f.clock),
		WithLogger(testutil.Logger(t)),
		WithIDGenerator(testutil.NewFixedIDGenerator("")),
	}
	s, err := Open(context.Background(), f.reg, owner, f.local, f.remote, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func (f *fixture) store(t *testing.T, s *memory.Store, b model.Bundle) {
	t.Helper()
	raw, err := b.Canonical()
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), model.BundleKey, raw))
}

// completed returns the default bundle with the given lessons completed at ms.
func (f *fixture) completed(ms int64, lessons ...model.ImmutableID) model.Bundle {
	b := integrity.DefaultBundle(owner, f.reg)
	for _, id := range lessons {
		b.OverallProgress.LessonCompletions[id] = model.Completed(ms)
	}
	b.OverallProgress.Recount()
	return b
}

func TestOpen_Fresh(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	rep := s.Report()
	assert.True(t, rep.Fresh)
	assert.False(t, rep.Merged)
	assert.False(t, rep.Local.Found)
	assert.False(t, rep.Remote.Found)
	assert.Equal(t, "test-session", s.ID())
	snap := s.Engine().Snapshot()
	assert.Equal(t, owner, snap.Metadata.Owner)
	assert.Zero(t, snap.OverallProgress.TotalLessonsCompleted)
}

func TestOpen_LocalOnly(t *testing.T) {
	f := newFixture(t)
	f.store(t, f.local, f.completed(1000, testutil.LessonWelcome))

	s := f.open(t)

	rep := s.Report()
	assert.True(t, rep.Local.Found)
	assert.True(t, rep.Local.PerfectlyValidInput)
	assert.False(t, rep.Fresh)
	assert.True(t, s.Engine().Snapshot().OverallProgress.LessonCompletions[testutil.LessonWelcome].IsComplete())
}

func TestOpen_MergesBothStores(t *testing.T) {
	f := newFixture(t)
	f.store(t, f.local, f.completed(1000, testutil.LessonWelcome))
	f.store(t, f.remote, f.completed(2000, testutil.LessonNext))

	s := f.open(t)

	assert.True(t, s.Report().Merged)
	overall := s.Engine().Snapshot().OverallProgress
	assert.True(t, overall.LessonCompletions[testutil.LessonWelcome].IsComplete())
	assert.True(t, overall.LessonCompletions[testutil.LessonNext].IsComplete())
	assert.EqualValues(t, 2, overall.TotalLessonsCompleted)
}

func TestOpen_DiscardsOtherOwner(t *testing.T) {
	f := newFixture(t)
	f.store(t, f.local, f.completed(1000, testutil.LessonWelcome))
	other := f.completed(2000, testutil.LessonNext)
	other.Metadata.Owner = "https://mallory.example/profile#me"
	f.store(t, f.remote, other)

	s := f.open(t)

	rep := s.Report()
	assert.True(t, rep.Remote.Discarded)
	assert.False(t, rep.Merged)
	overall := s.Engine().Snapshot().OverallProgress
	assert.True(t, overall.LessonCompletions[testutil.LessonWelcome].IsComplete())
	assert.False(t, overall.LessonCompletions[testutil.LessonNext].IsComplete())
	assert.Equal(t, owner, s.Engine().Snapshot().Metadata.Owner)
}

func TestOpen_RepairsCorruptBundle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.remote.Save(context.Background(), model.BundleKey,
		[]byte(`{"metadata":{"owner":"`+owner+`"},"overallProgress":{"totalLessonsCompleted":5,"lessonCompletions":{}}}`)))

	m := metrics.New()
	s := f.open(t, WithMetrics(m))

	rep := s.Report()
	assert.True(t, rep.Remote.Found)
	assert.False(t, rep.Remote.PerfectlyValidInput)
	assert.True(t, rep.Remote.Sections[integrity.SectionOverallProgress].CorruptionDetected)
	assert.EqualValues(t, 0, s.Engine().Snapshot().OverallProgress.TotalLessonsCompleted)
	assert.False(t, rep.Fresh)
	assert.NotNil(t, m.Registry())
}

func TestOpen_UnreadableRemoteStartsOffline(t *testing.T) {
	f := newFixture(t)
	f.store(t, f.local, f.completed(1000, testutil.LessonWelcome))
	f.remote.SetFailure(memory.OpLoad, errors.New("dial tcp: connection refused"))

	s := f.open(t)

	rep := s.Report()
	assert.False(t, rep.Remote.Found)
	assert.Contains(t, rep.Remote.LoadError, "connection refused")
	assert.True(t, s.Engine().Snapshot().OverallProgress.LessonCompletions[testutil.LessonWelcome].IsComplete())
}

func TestSession_TickPersistsToBothStores(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	require.NoError(t, s.Engine().Tick(ctx))
	out, err := s.Saver().Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, save.BothOK, out)

	for _, st := range []*memory.Store{f.local, f.remote} {
		raw, err := st.Load(ctx, model.BundleKey)
		require.NoError(t, err)
		res, err := integrity.Recover(raw, owner, f.reg)
		require.NoError(t, err)
		assert.True(t, res.PerfectlyValidInput)
	}
}

func TestSession_RunUntilCancelled(t *testing.T) {
	f := newFixture(t)
	s := f.open(t,
		WithEngineOptions(engine.WithTickInterval(time.Millisecond)),
		WithSaveOptions(save.WithPollInterval(time.Millisecond)),
		WithBackups(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.remote.Load(context.Background(), model.BundleKey)
		return err == nil
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Nil(t, s.Critical())
	assert.True(t, s.Online())
	assert.Contains(t, f.remote.Keys(), save.BackupName(model.RuntimeVersion, f.clock.Now()))
	assert.False(t, s.Dispatch(engine.UIEvent{ComponentID: testutil.StartButton}), "engine closed after Run")
}

func TestFromConfig_MemoryDrivers(t *testing.T) {
	reg := testutil.Registry(t)
	cfg := config.Default()
	cfg.Owner = owner
	cfg.Local = config.StoreConfig{Driver: config.DriverMemory}
	cfg.Remote = config.StoreConfig{Driver: config.DriverBadger, InMemory: true}

	s, err := FromConfig(context.Background(), cfg, reg, WithLogger(testutil.Logger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	assert.True(t, s.Report().Fresh)
	assert.NotNil(t, s.Backups())
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StoreConfig{Driver: "tape"}, testutil.Logger(t))
	require.Error(t, err)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, a, b)
}
