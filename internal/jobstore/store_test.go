package jobstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fedutinova/pagegen/internal/common"
	"github.com/fedutinova/pagegen/internal/job"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCreate_SetsDefaults(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	j := s.Create(job.Request{Message: "a page with 2 buttons"})

	assert.NotEqual(t, uuid.Nil, j.ID)
	assert.Equal(t, job.StatusReceived, j.Status)
	assert.Equal(t, clock.Now(), j.CreatedAt)
	assert.Equal(t, clock.Now().Add(DefaultTTL), j.ExpiresAt)
	assert.Nil(t, j.Result)
	assert.Empty(t, j.Error)

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, "a page with 2 buttons", got.Request.Message)

	stats := s.StatsCumulative()
	assert.Equal(t, 1, stats.Total["created"])
	assert.Equal(t, 1, stats.Total["received"])
}

func TestGet_UnknownID(t *testing.T) {
	s := New()
	_, err := s.Get(uuid.New())
	assert.ErrorIs(t, err, common.ErrJobNotFound)
	assert.True(t, common.IsNotFound(err))
}

func TestGet_HidesExpiredBeforeSweep(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithTTL(time.Minute))
	j := s.Create(job.Request{Message: "x"})

	clock.Advance(59 * time.Second)
	_, err := s.Get(j.ID)
	require.NoError(t, err)

	// exactly at expires_at the job is gone for readers
	clock.Advance(time.Second)
	_, err = s.Get(j.ID)
	assert.ErrorIs(t, err, common.ErrJobNotFound)

	// still physically present until the sweep runs
	s.mu.RLock()
	_, present := s.jobs[j.ID]
	s.mu.RUnlock()
	assert.True(t, present)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New()
	j := s.Create(job.Request{Message: "x"})
	s.SetResult(j.ID, &job.Result{HTML: "<p>a</p>"}, "")

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	got.Status = job.StatusFailed
	got.Result.HTML = "mutated"

	again, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusReceived, again.Status)
	assert.Equal(t, "<p>a</p>", again.Result.HTML)
}

func TestGet_RequestIsNotShared(t *testing.T) {
	s := New()
	temp := 0.3
	req := job.Request{
		Message:     "x",
		Temperature: &temp,
		Extra:       map[string]any{"theme": "dark", "tags": []any{"a"}, "nested": map[string]any{"k": 1.0}},
	}
	j := s.Create(req)

	// caller keeps mutating its own request
	temp = 1.5
	req.Extra["theme"] = "light"

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	*got.Request.Temperature = 2
	got.Request.Extra["tags"].([]any)[0] = "b"
	got.Request.Extra["nested"].(map[string]any)["k"] = 2.0

	again, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.3, *again.Request.Temperature)
	assert.Equal(t, "dark", again.Request.Extra["theme"])
	assert.Equal(t, []any{"a"}, again.Request.Extra["tags"])
	assert.Equal(t, map[string]any{"k": 1.0}, again.Request.Extra["nested"])
}

func TestSetStatus_CountersAreAdditive(t *testing.T) {
	s := New()
	j := s.Create(job.Request{Message: "x"})

	s.SetStatus(j.ID, job.StatusProcessing)
	s.SetStatus(j.ID, job.StatusProcessing) // same status: no increment
	s.SetStatus(j.ID, job.StatusFinished)

	stats := s.StatsCumulative()
	assert.Equal(t, 1, stats.Total["received"])
	assert.Equal(t, 1, stats.Total["processing"])
	assert.Equal(t, 1, stats.Total["finished"])
	assert.Equal(t, 0, stats.Total["failed"])

	assert.Equal(t, 1, stats.Live["finished"])
	assert.Equal(t, 0, stats.Live["received"])
	assert.Len(t, stats.Live, len(job.Statuses))
}

func TestStatsCumulative_ConsistentUnderWrites(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				s.Create(job.Request{Message: "x"})
			}
		}()
	}

	for i := 0; i < 50; i++ {
		stats := s.StatsCumulative()
		assert.Equal(t, stats.Total["created"], stats.Live["received"])
	}
	wg.Wait()

	stats := s.StatsCumulative()
	assert.Equal(t, 400, stats.Total["created"])
	assert.Equal(t, 400, stats.Live["received"])
}

func TestSetStatus_TerminalIsFinal(t *testing.T) {
	s := New()
	j := s.Create(job.Request{Message: "x"})

	s.SetStatus(j.ID, job.StatusProcessing)
	s.SetStatus(j.ID, job.StatusFailed)
	s.SetStatus(j.ID, job.StatusFinished)
	s.SetStatus(j.ID, job.StatusReceived)

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, 0, s.StatsCumulative().Total["finished"])
}

func TestSetStatus_UnknownIDIsNoop(t *testing.T) {
	s := New()
	s.SetStatus(uuid.New(), job.StatusProcessing)
	s.SetResult(uuid.New(), &job.Result{}, "boom")
	assert.Equal(t, 0, s.StatsCumulative().Total["processing"])
}

func TestSetResult_DoesNotChangeStatus(t *testing.T) {
	s := New()
	j := s.Create(job.Request{Message: "x"})
	s.SetResult(j.ID, nil, "failure text")

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusReceived, got.Status)
	assert.Equal(t, "failure text", got.Error)
	assert.Nil(t, got.Result)
}

func TestList_OrderedNewestFirst(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, s.Create(job.Request{Message: "x"}).ID)
		clock.Advance(time.Second)
	}
	s.SetStatus(ids[1], job.StatusProcessing)
	s.SetStatus(ids[3], job.StatusProcessing)
	s.SetStatus(ids[3], job.StatusFailed)

	items, total := s.List("", 1, 50)
	require.Equal(t, 5, total)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].CreatedAt.After(items[i].CreatedAt), "items must be sorted by created_at desc")
	}
	assert.Equal(t, ids[4], items[0].ID)
	assert.Equal(t, ids[0], items[4].ID)
}

func TestList_FilterAndPagination(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))
	for i := 0; i < 25; i++ {
		s.Create(job.Request{Message: "x"})
		clock.Advance(time.Millisecond)
	}

	items, total := s.List("", 2, 10)
	assert.Len(t, items, 10)
	assert.Equal(t, 25, total)

	items, total = s.List("", 3, 10)
	assert.Len(t, items, 5)
	assert.Equal(t, 25, total)

	items, total = s.List("", 4, 10)
	assert.Empty(t, items)
	assert.Equal(t, 25, total)

	items, total = s.List(job.StatusFinished, 1, 10)
	assert.Empty(t, items)
	assert.Equal(t, 0, total)
}

func TestList_ClampsInput(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Create(job.Request{Message: "x"})
	}

	items, total := s.List("", 0, 0)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, total)

	page, size := ClampPage(-4, 999)
	assert.Equal(t, 1, page)
	assert.Equal(t, MaxPageSize, size)
}

func TestList_SkipsExpired(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithTTL(time.Minute))
	s.Create(job.Request{Message: "old"})
	clock.Advance(30 * time.Second)
	fresh := s.Create(job.Request{Message: "new"})
	clock.Advance(30 * time.Second)

	items, total := s.List("", 1, 10)
	require.Equal(t, 1, total)
	assert.Equal(t, fresh.ID, items[0].ID)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Stats()[job.StatusReceived])
}

func TestSweep_RemovesExpiredButKeepsTotals(t *testing.T) {
	clock := newFakeClock()
	var swept []int
	s := New(WithClock(clock.Now), WithTTL(time.Minute), WithSweepHook(func(n int) { swept = append(swept, n) }))

	for i := 0; i < 4; i++ {
		s.Create(job.Request{Message: "x"})
	}
	clock.Advance(time.Minute)
	keep := s.Create(job.Request{Message: "y"})

	removed := s.Sweep()
	assert.Equal(t, 4, removed)
	assert.Equal(t, []int{4}, swept)

	s.mu.RLock()
	assert.Len(t, s.jobs, 1)
	_, ok := s.jobs[keep.ID]
	s.mu.RUnlock()
	assert.True(t, ok)

	stats := s.StatsCumulative()
	assert.Equal(t, 5, stats.Total["created"])
	assert.Equal(t, 5, stats.Total["received"])
	assert.Equal(t, 1, stats.Live["received"])
}

func TestSweep_EvictHookGetsCopies(t *testing.T) {
	clock := newFakeClock()
	var evicted []job.Job
	s := New(WithClock(clock.Now), WithTTL(time.Minute), WithEvictHook(func(js []job.Job) { evicted = append(evicted, js...) }))

	j := s.Create(job.Request{Message: "x"})
	s.SetResult(j.ID, &job.Result{HTML: "<p/>", ArtifactKey: "pages/a.html"}, "")

	assert.Equal(t, 0, s.Sweep())
	assert.Empty(t, evicted)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	require.Len(t, evicted, 1)
	assert.Equal(t, j.ID, evicted[0].ID)
	assert.Equal(t, "pages/a.html", evicted[0].Result.ArtifactKey)
}

func TestSweeper_StartStop(t *testing.T) {
	clock := newFakeClock()
	sweeps := make(chan int, 16)
	s := New(
		WithClock(clock.Now),
		WithTTL(time.Minute),
		WithSweepInterval(5*time.Millisecond),
		WithSweepHook(func(n int) {
			select {
			case sweeps <- n:
			default:
			}
		}),
	)
	j := s.Create(job.Request{Message: "x"})
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.StartSweeper(ctx)
	s.StartSweeper(ctx) // idempotent

	select {
	case <-sweeps:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for sweep")
	}

	s.StopSweeper()
	s.StopSweeper() // stopping twice is harmless

	s.mu.RLock()
	_, ok := s.jobs[j.ID]
	s.mu.RUnlock()
	assert.False(t, ok)

	// no sweep iteration may run after StopSweeper returns
	for len(sweeps) > 0 {
		<-sweeps
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sweeps)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := s.Create(job.Request{Message: "x"})
			s.SetStatus(j.ID, job.StatusProcessing)
			s.SetResult(j.ID, &job.Result{HTML: "<p/>"}, "")
			s.SetStatus(j.ID, job.StatusFinished)
			_, _ = s.Get(j.ID)
			_, _ = s.List("", 1, 10)
			_ = s.Stats()
		}()
	}
	wg.Wait()

	stats := s.StatsCumulative()
	assert.Equal(t, 50, stats.Total["created"])
	assert.Equal(t, 50, stats.Total["finished"])
	assert.Equal(t, 50, stats.Live["finished"])
}
