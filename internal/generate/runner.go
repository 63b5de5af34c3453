// Package generate drives one generation job from prompt to accepted document.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fedutinova/pagegen/internal/job"
	"github.com/fedutinova/pagegen/internal/llm"
	"github.com/fedutinova/pagegen/internal/metrics"
	"github.com/fedutinova/pagegen/internal/storage"
	"github.com/fedutinova/pagegen/internal/validator"
	"github.com/google/uuid"
)

const (
	issueIncomplete     = "Model did not return a full HTML document."
	qualityNotMet       = "Quality threshold not met."
	artifactTimeout     = 15 * time.Second
	artifactReleaseWait = 10 * time.Second
	modelClientError    = "model client error"
)

var ErrShuttingDown = errors.New("generation runner is shutting down")

// Registry is the subset of the job registry the runner writes to.
type Registry interface {
	Create(req job.Request) job.Job
	SetStatus(id uuid.UUID, status job.Status)
	SetResult(id uuid.UUID, result *job.Result, errMsg string)
}

// ScoreFunc rates a fenced candidate document.
type ScoreFunc func(content string, exp validator.Expectations) (float64, []string)

// SleepFunc waits between attempts and returns early with ctx's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	MinScore       float64
	MaxRetries     int
	RetryBaseDelay time.Duration
	AttemptTimeout time.Duration
	// ArtifactTTL bounds presigned artifact links; zero uses the plain object URL.
	ArtifactTTL   time.Duration
	ModelDefaults llm.Defaults
}

func DefaultConfig() Config {
	return Config{
		MinScore:       0.80,
		MaxRetries:     5,
		RetryBaseDelay: time.Second,
		AttemptTimeout: 60 * time.Second,
		ModelDefaults:  llm.DefaultDefaults(),
	}
}

type Runner struct {
	store     Registry
	gen       llm.Generator
	cfg       Config
	score     ScoreFunc
	sleep     SleepFunc
	artifacts storage.Storage
	metrics   *metrics.Generation
	log       *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

type Option func(*Runner)

func WithScorer(fn ScoreFunc) Option {
	return func(r *Runner) { r.score = fn }
}

func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithArtifacts stores every accepted document. A nil Storage disables it.
func WithArtifacts(s storage.Storage) Option {
	return func(r *Runner) { r.artifacts = s }
}

func WithMetrics(m *metrics.Generation) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func NewRunner(store Registry, gen llm.Generator, cfg Config, opts ...Option) *Runner {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:   store,
		gen:     gen,
		cfg:     cfg,
		score:   validator.Score,
		sleep:   sleepCtx,
		log:     slog.Default(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit registers a job and starts processing it in the background. The run is
// bound to the runner's lifetime, not to the caller's request.
func (r *Runner) Submit(req job.Request) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return job.Job{}, ErrShuttingDown
	}

	j := r.store.Create(req)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.metrics.RunStarted()
		defer r.metrics.RunDone()
		r.Run(r.baseCtx, j.ID, req)
	}()

	r.log.Info("generation job accepted", "job_id", j.ID, "message_len", len(req.Message))
	return j, nil
}

// Run processes one job to a terminal state. It never panics and writes the
// terminal result exactly once.
func (r *Runner) Run(ctx context.Context, id uuid.UUID, req job.Request) {
	var (
		result  *job.Result
		errMsg  string
		outcome string
	)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("generation job panicked", "job_id", id, "panic", p, "stack", string(debug.Stack()))
			result, errMsg, outcome = nil, fmt.Sprintf("unhandled error: %v", p), metrics.OutcomePanic
		}
		r.finish(id, result, errMsg, outcome)
	}()

	r.store.SetStatus(id, job.StatusProcessing)
	result, errMsg, outcome = r.generate(ctx, id, req)
}

func (r *Runner) finish(id uuid.UUID, result *job.Result, errMsg, outcome string) {
	if result == nil {
		if errMsg == "" {
			errMsg = modelClientError
		}
		r.store.SetResult(id, nil, errMsg)
		r.store.SetStatus(id, job.StatusFailed)
		r.log.Info("generation job finished", "job_id", id, "status", job.StatusFailed, "outcome", outcome, "err", errMsg)
	} else {
		r.store.SetResult(id, result, "")
		r.store.SetStatus(id, job.StatusFinished)
		r.log.Info("generation job finished", "job_id", id, "status", job.StatusFinished,
			"score", result.Score, "attempts", result.Attempts)
	}
	r.metrics.ObserveRun(outcome)
}

type attemptKind int

const (
	attemptAccepted attemptKind = iota
	attemptRejected
	attemptCrashed
	attemptFatal
)

type attemptResult struct {
	kind    attemptKind
	html    string
	score   float64
	issues  []string
	err     string
	outcome string
}

func (r *Runner) generate(ctx context.Context, id uuid.UUID, req job.Request) (*job.Result, string, string) {
	prompt := llm.BuildPrompt(req.Message, req.PreviousHTML)
	opts := llm.OptionsFromRequest(req, r.cfg.ModelDefaults)
	exp := validator.Expectations{ExpectedSVGs: req.ExpectedSVGs}

	var (
		lastIssues []string
		lastCrash  string
	)
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		res := r.attempt(ctx, id, attempt, prompt, opts, exp)

		switch res.kind {
		case attemptAccepted:
			result := &job.Result{
				HTML:     res.html,
				Score:    res.score,
				Attempts: attempt,
			}
			r.storeArtifact(ctx, id, result)
			return result, "", metrics.OutcomeAccepted
		case attemptFatal:
			return nil, res.err, res.outcome
		case attemptRejected:
			lastIssues, lastCrash = res.issues, ""
		case attemptCrashed:
			lastIssues, lastCrash = nil, res.err
		}

		if attempt == r.cfg.MaxRetries {
			break
		}
		delay := r.cfg.RetryBaseDelay * time.Duration(attempt)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, "generation cancelled: " + err.Error(), metrics.OutcomeError
		}
	}

	switch {
	case lastCrash != "":
		return nil, lastCrash, metrics.OutcomePanic
	case len(lastIssues) > 0:
		return nil, strings.Join(lastIssues, "; "), metrics.OutcomeRejected
	default:
		return nil, qualityNotMet, metrics.OutcomeRejected
	}
}

func (r *Runner) attempt(ctx context.Context, id uuid.UUID, attempt int, prompt string, opts llm.Options, exp validator.Expectations) (res attemptResult) {
	log := r.log.With("job_id", id, "attempt", attempt)
	defer func() {
		if p := recover(); p != nil {
			log.Error("generation attempt panicked", "panic", p, "stack", string(debug.Stack()))
			r.metrics.ObserveAttempt("panic")
			res = attemptResult{kind: attemptCrashed, err: fmt.Sprintf("unhandled error: %v", p)}
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()

	log.Info("calling model")
	start := time.Now()
	raw, err := r.gen.Generate(attemptCtx, prompt, opts)
	r.metrics.ObserveModelLatency(time.Since(start))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			r.metrics.ObserveAttempt("cancelled")
			log.Warn("generation cancelled", "err", err)
			return attemptResult{kind: attemptFatal, err: "generation cancelled: " + ctx.Err().Error(), outcome: metrics.OutcomeError}
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			msg := "Generation timed out after " + formatSeconds(r.cfg.AttemptTimeout)
			r.metrics.ObserveAttempt("timeout")
			log.Warn("model call timed out", "timeout", r.cfg.AttemptTimeout)
			return attemptResult{kind: attemptFatal, err: msg, outcome: metrics.OutcomeTimeout}
		default:
			r.metrics.ObserveAttempt("error")
			log.Error("model call failed", "err", err)
			msg := err.Error()
			if msg == "" {
				msg = fmt.Sprintf("%s (%T)", modelClientError, err)
			}
			return attemptResult{kind: attemptFatal, err: msg, outcome: metrics.OutcomeError}
		}
	}

	doc := llm.Canonicalize(raw)
	if !llm.IsCompleteDocument(doc) {
		r.metrics.ObserveAttempt("incomplete")
		log.Info("model output is not a full document")
		return attemptResult{kind: attemptRejected, issues: []string{issueIncomplete}}
	}

	score, issues := r.score("```html\n"+doc+"\n```", exp)
	r.metrics.ObserveScore(score)
	log.Info("candidate scored", "score", score, "issues", issues)

	if score >= r.cfg.MinScore {
		r.metrics.ObserveAttempt("accepted")
		return attemptResult{kind: attemptAccepted, html: doc, score: score}
	}
	r.metrics.ObserveAttempt("rejected")
	return attemptResult{kind: attemptRejected, score: score, issues: issues}
}

// storeArtifact uploads an accepted document. Failures are logged and never fail the job.
func (r *Runner) storeArtifact(ctx context.Context, id uuid.UUID, result *job.Result) {
	if r.artifacts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, artifactTimeout)
	defer cancel()

	up, err := r.artifacts.UploadFile(ctx, id.String()+".html", strings.NewReader(result.HTML), "")
	if err != nil {
		r.metrics.ArtifactFailed()
		r.log.Warn("failed to store artifact", "job_id", id, "err", err)
		return
	}

	url := up.URL
	if r.cfg.ArtifactTTL > 0 {
		signed, err := r.artifacts.GetPresignedURL(ctx, up.Key, r.cfg.ArtifactTTL)
		if err != nil {
			r.log.Warn("failed to presign artifact url", "job_id", id, "key", up.Key, "err", err)
		} else {
			url = signed
		}
	}
	result.ArtifactURL = url
	result.ArtifactKey = up.Key
}

// ReleaseArtifacts deletes stored documents of evicted jobs. It is meant to be
// used as the registry's eviction hook.
func (r *Runner) ReleaseArtifacts(evicted []job.Job) {
	if r.artifacts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), artifactReleaseWait)
	defer cancel()

	for _, j := range evicted {
		if j.Result == nil || j.Result.ArtifactKey == "" {
			continue
		}
		if err := r.artifacts.DeleteFile(ctx, j.Result.ArtifactKey); err != nil {
			r.log.Warn("failed to delete artifact", "job_id", j.ID, "key", j.Result.ArtifactKey, "err", err)
		}
	}
}

// Wait blocks until every submitted run has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and drains in-flight runs. When ctx expires first,
// the remaining runs are cancelled and fail with a cancellation error.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	err := r.Wait(ctx)
	if err == nil {
		r.cancel()
		return nil
	}

	r.log.Warn("drain deadline reached, cancelling in-flight generation jobs")
	r.cancel()
	r.wg.Wait()
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
