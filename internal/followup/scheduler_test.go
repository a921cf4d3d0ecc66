package followup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/storage"
	"memecoin-signal-lab/internal/storage/memory"
	"memecoin-signal-lab/internal/vip"
)

type fakeMeasurer struct {
	mu      sync.Mutex
	impacts map[string]float64 // missing coin = no measurement
	fail    map[string]bool
	calls   []string
}

func (f *fakeMeasurer) PriceImpact(_ context.Context, coin string, _ time.Time) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, coin)
	if f.fail[coin] {
		return 0, false, errors.New("lookup failed")
	}
	v, ok := f.impacts[coin]
	return v, ok, nil
}

func (f *fakeMeasurer) set(coin string, impact float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impacts[coin] = impact
}

type outcome struct {
	handle, coin string
	impact       float64
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, handle, coin string, impact float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome{handle, coin, impact})
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(store storage.FollowUpStore, m ImpactMeasurer, r OutcomeRecorder, c *clock) *Scheduler {
	return NewScheduler(store, m, r, Options{Now: c.now})
}

func TestSchedule_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(store, &fakeMeasurer{}, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE"}, "alice"))
	c.add(time.Hour)
	require.NoError(t, s.Schedule(ctx, "p1", []string{"PEPE"}, "bob"))

	task, err := s.Status(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"DOGE"}, task.Coins)
	assert.Equal(t, "alice", task.Author)
	assert.Equal(t, 0, task.Attempts)
	assert.False(t, task.Completed)
	assert.Equal(t, domain.FollowUpScheduled, task.Status())
	assert.True(t, task.ScheduledAt.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestSchedule_ConcurrentCallsCreateOneTask(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(store, &fakeMeasurer{}, &fakeRecorder{}, c)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE"}, "alice"))
		}()
	}
	wg.Wait()

	c.add(DefaultDelay)
	due, err := store.ListDue(ctx, c.now(), DefaultMaxAttempts)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestSchedule_InvalidInput(t *testing.T) {
	s := newTestScheduler(memory.NewFollowUpStore(), &fakeMeasurer{}, &fakeRecorder{}, &clock{t: time.Now()})
	assert.ErrorIs(t, s.Schedule(context.Background(), "", []string{"DOGE"}, "a"), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.Schedule(context.Background(), "p1", nil, "a"), storage.ErrInvalidInput)
}

func TestSweep_NotDueYet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := &fakeMeasurer{impacts: map[string]float64{"DOGE": 120}}
	s := newTestScheduler(store, m, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE"}, "alice"))
	c.add(47 * time.Hour)

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Empty(t, m.calls)
}

func TestSweep_SignificantImpactCompletesAndFeedsVip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	vipStore := memory.NewVipStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := vip.NewTracker(vipStore, vip.Options{Seeds: []string{}, Now: c.now})
	m := &fakeMeasurer{impacts: map[string]float64{"DOGE": 120, "PEPE": 5}}
	s := newTestScheduler(store, m, tracker, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE", "PEPE"}, "NewAuthor"))
	c.add(DefaultDelay)

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 1, Completed: 1}, res)

	task, err := s.Status(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, task.Completed)
	assert.True(t, task.SignificantImpactFound)
	assert.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.CompletedAt)
	require.Len(t, task.PriceImpacts, 2)
	assert.Equal(t, "DOGE", task.PriceImpacts[0].Coin)
	assert.Equal(t, 120.0, task.PriceImpacts[0].ImpactPercent)

	rec, err := tracker.GetInfluence(ctx, "newauthor")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.InfluenceScoreDiscovered, rec.InfluenceScore)
	assert.Equal(t, []string{"DOGE"}, rec.CoinsInfluenced)

	res, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due, "completed tasks are never picked up again")
}

func TestSweep_NegativeImpactIsSignificant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &fakeRecorder{}
	s := newTestScheduler(store, &fakeMeasurer{impacts: map[string]float64{"RUG": -80}}, rec, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"RUG"}, "alice"))
	c.add(DefaultDelay)
	_, err := s.Sweep(ctx)
	require.NoError(t, err)

	task, _ := s.Status(ctx, "p1")
	assert.True(t, task.SignificantImpactFound)
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, outcome{"alice", "RUG", -80}, rec.outcomes[0])
}

func TestSweep_NoImpactStaysScheduledWithProgress(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &fakeRecorder{}
	s := newTestScheduler(store, &fakeMeasurer{impacts: map[string]float64{"DOGE": 12}}, rec, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE", "UNKNOWN"}, "alice"))
	c.add(DefaultDelay)

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 1}, res)

	task, _ := s.Status(ctx, "p1")
	assert.False(t, task.Completed)
	assert.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.LastAttemptedAt)
	require.Len(t, task.PriceImpacts, 1, "missing coins record no measurement")
	assert.Empty(t, rec.outcomes)
}

func TestSweep_LastAttemptCompletesWithoutSignificance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := &fakeMeasurer{impacts: map[string]float64{"DOGE": 10}}
	s := newTestScheduler(store, m, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE"}, "alice"))
	c.add(DefaultDelay)
	for i := 0; i < DefaultMaxAttempts-1; i++ {
		_, err := store.MarkAttempt(ctx, "p1", c.now())
		require.NoError(t, err)
	}

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 1, Completed: 1}, res)

	task, _ := s.Status(ctx, "p1")
	assert.Equal(t, DefaultMaxAttempts, task.Attempts)
	assert.True(t, task.Completed)
	assert.False(t, task.SignificantImpactFound)
	assert.Equal(t, domain.FollowUpCompleted, task.Status())
}

func TestSweep_ImpactFoundOnLaterAttempt(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := &fakeMeasurer{impacts: map[string]float64{"DOGE": 10}}
	s := newTestScheduler(store, m, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE"}, "alice"))
	c.add(DefaultDelay)

	_, err := s.Sweep(ctx)
	require.NoError(t, err)

	m.set("DOGE", 75)
	c.add(DefaultCheckInterval)
	_, err = s.Sweep(ctx)
	require.NoError(t, err)

	task, _ := s.Status(ctx, "p1")
	assert.True(t, task.Completed)
	assert.True(t, task.SignificantImpactFound)
	assert.Equal(t, 2, task.Attempts)
	assert.Len(t, task.PriceImpacts, 2, "measurements accumulate across attempts")
}

// failingStore fails MarkAttempt for one post.
type failingStore struct {
	*memory.FollowUpStore
	failPost string
}

func (f *failingStore) MarkAttempt(ctx context.Context, postID string, at time.Time) (*domain.FollowUpTask, error) {
	if postID == f.failPost {
		return nil, errors.New("write failed")
	}
	return f.FollowUpStore.MarkAttempt(ctx, postID, at)
}

func TestSweep_TaskFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{FollowUpStore: memory.NewFollowUpStore(), failPost: "bad"}
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := &fakeMeasurer{impacts: map[string]float64{"DOGE": 90}, fail: map[string]bool{"BROKEN": true}}
	s := newTestScheduler(store, m, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "bad", []string{"DOGE"}, "a"))
	require.NoError(t, s.Schedule(ctx, "lookup", []string{"BROKEN", "DOGE"}, "b"))
	require.NoError(t, s.Schedule(ctx, "good", []string{"DOGE"}, "c"))
	c.add(DefaultDelay)

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 3, Completed: 2, Failed: 1}, res)

	task, _ := s.Status(ctx, "lookup")
	assert.True(t, task.Completed, "a failing coin lookup does not block the other coins")
}

type countingRefresher struct {
	mu    sync.Mutex
	coins []string
}

func (r *countingRefresher) Metrics(_ context.Context, coin string) (*domain.TokenMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coins = append(r.coins, coin)
	return nil, pricing.ErrPriceUnavailable
}

func TestSweep_RefreshesBeforeMeasuring(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	refresher := &countingRefresher{}
	s := NewScheduler(memory.NewFollowUpStore(), &fakeMeasurer{}, &fakeRecorder{}, Options{
		Now:       c.now,
		Refresher: refresher,
	})

	require.NoError(t, s.Schedule(ctx, "p1", []string{"DOGE", "PEPE"}, "a"))
	c.add(DefaultDelay)
	_, err := s.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"DOGE", "PEPE"}, refresher.coins)
}

func TestCleanup_PurgesOldCompletedTasks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFollowUpStore()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(store, &fakeMeasurer{impacts: map[string]float64{"DOGE": 200}}, &fakeRecorder{}, c)

	require.NoError(t, s.Schedule(ctx, "old", []string{"DOGE"}, "a"))
	c.add(DefaultDelay)
	_, err := s.Sweep(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Schedule(ctx, "open", []string{"DOGE"}, "a"))

	c.add(29 * 24 * time.Hour)
	n, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	c.add(2 * 24 * time.Hour)
	n, err = s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Status(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Status(ctx, "open")
	assert.NoError(t, err, "scheduled tasks are never purged")
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewScheduler(memory.NewFollowUpStore(), &fakeMeasurer{}, &fakeRecorder{}, Options{CheckInterval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
