package jobstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fedutinova/pagegen/internal/common"
	"github.com/fedutinova/pagegen/internal/job"
	"github.com/google/uuid"
)

const (
	DefaultTTL           = 20 * time.Minute
	DefaultSweepInterval = 30 * time.Second

	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Store is the in-memory job registry. Records are only ever handed out as copies.
type Store struct {
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	onSweep       func(removed int)
	onEvict       func(evicted []job.Job)
	log           *slog.Logger

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*job.Job
	totals  map[job.Status]int
	created int

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock replaces the wall clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSweepHook is called after every sweep pass with the number of evicted jobs.
func WithSweepHook(fn func(removed int)) Option {
	return func(s *Store) { s.onSweep = fn }
}

// WithEvictHook receives copies of the jobs removed by a sweep pass.
func WithEvictHook(fn func(evicted []job.Job)) Option {
	return func(s *Store) { s.onEvict = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(opts ...Option) *Store {
	s := &Store{
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		log:           slog.Default(),
		jobs:          make(map[uuid.UUID]*job.Job),
		totals:        make(map[job.Status]int, len(job.Statuses)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Create(req job.Request) job.Job {
	now := s.now()
	j := &job.Job{
		ID:        uuid.New(),
		Status:    job.StatusReceived,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Request:   req.Clone(),
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.created++
	s.totals[job.StatusReceived]++
	out := clone(j)
	s.mu.Unlock()

	s.log.Debug("job created", "job_id", j.ID, "expires_at", j.ExpiresAt)
	return out
}

// Get returns the live job or common.ErrJobNotFound. Expired jobs are hidden
// even when the sweeper has not removed them yet.
func (s *Store) Get(id uuid.UUID) (job.Job, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || j.Expired(now) {
		return job.Job{}, common.ErrJobNotFound
	}
	return clone(j), nil
}

func clone(j *job.Job) job.Job {
	out := *j
	out.Request = j.Request.Clone()
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	return out
}

// SetStatus moves a job forward in its lifecycle and bumps the cumulative counter
// of the new status. Unknown ids are ignored, as are regressions and any change
// once the job is terminal.
func (s *Store) SetStatus(id uuid.UUID, status job.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status == status {
		return
	}
	if j.Status.IsTerminal() || status.Rank() < j.Status.Rank() {
		s.log.Warn("ignoring status regression", "job_id", id, "from", j.Status, "to", status)
		return
	}
	j.Status = status
	s.totals[status]++
}

// SetResult stores the terminal payload. It does not touch the status.
func (s *Store) SetResult(id uuid.UUID, result *job.Result, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if result != nil {
		r := *result
		j.Result = &r
	} else {
		j.Result = nil
	}
	j.Error = errMsg
}

// List returns live jobs ordered by creation time, newest first, together with the
// number of jobs matching the filter. An empty filter matches every status.
func (s *Store) List(filter job.Status, page, size int) ([]job.Job, int) {
	page, size = ClampPage(page, size)
	now := s.now()

	s.mu.RLock()
	items := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Expired(now) {
			continue
		}
		if filter != "" && j.Status != filter {
			continue
		}
		items = append(items, clone(j))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(a, b int) bool {
		if !items[a].CreatedAt.Equal(items[b].CreatedAt) {
			return items[a].CreatedAt.After(items[b].CreatedAt)
		}
		return items[a].ID.String() < items[b].ID.String()
	})

	total := len(items)
	start := (page - 1) * size
	if start >= total {
		return []job.Job{}, total
	}
	end := min(start+size, total)
	return items[start:end], total
}

// ClampPage normalizes pagination input: page >= 1, size within [1, MaxPageSize].
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Stats counts live jobs per status.
func (s *Store) Stats() map[job.Status]int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveCountsLocked(now)
}

// StatsCumulative combines live counts with the counters kept since process start.
// Both sides are read under one lock.
func (s *Store) StatsCumulative() job.Stats {
	now := s.now()
	out := job.Stats{
		Live:  make(map[string]int, len(job.Statuses)),
		Total: make(map[string]int, len(job.Statuses)+1),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for st, n := range s.liveCountsLocked(now) {
		out.Live[string(st)] = n
	}
	for _, st := range job.Statuses {
		out.Total[string(st)] = s.totals[st]
	}
	out.Total["created"] = s.created
	return out
}

func (s *Store) liveCountsLocked(now time.Time) map[job.Status]int {
	counts := make(map[job.Status]int, len(job.Statuses))
	for _, st := range job.Statuses {
		counts[st] = 0
	}
	for _, j := range s.jobs {
		if j.Expired(now) {
			continue
		}
		counts[j.Status]++
	}
	return counts
}

// Len reports the number of live jobs.
func (s *Store) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, j := range s.jobs {
		if !j.Expired(now) {
			n++
		}
	}
	return n
}
