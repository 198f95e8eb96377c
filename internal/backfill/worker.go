package backfill

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/joingroups-backend/internal/translate"
)

// Defaults for Options.
const (
	DefaultInterval    = 4 * time.Second
	DefaultMaxAttempts = 40
	DefaultMaxFailures = 10
	DefaultMinRunes    = 20
)

// Outcome is how a job finished.
type Outcome string

const (
	OutcomePatched           Outcome = "patched"
	OutcomeExhaustedAttempts Outcome = "exhausted_attempts"
	OutcomeExhaustedFailures Outcome = "exhausted_failures"
	OutcomeOrphaned          Outcome = "orphaned"
)

var (
	// ErrListingGone is returned by a Patcher when the listing no longer
	// exists. The job is dropped.
	ErrListingGone = errors.New("listing gone")
	// ErrStopped is returned by Enqueue after Shutdown. The job is still
	// persisted and resumes on the next Start.
	ErrStopped = errors.New("backfill worker stopped")
)

// Patcher writes a translated description into the listing and clears its
// pending flag.
type Patcher interface {
	PatchDescription(ctx context.Context, listingID, lang, text string) error
}

// PatchFunc adapts a function to Patcher.
type PatchFunc func(ctx context.Context, listingID, lang, text string) error

// PatchDescription calls f.
func (f PatchFunc) PatchDescription(ctx context.Context, listingID, lang, text string) error {
	return f(ctx, listingID, lang, text)
}

// Options tunes the retry budget.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	MaxFailures int // consecutive empty results or patch errors
	MinRunes    int // shorter results count as an attempt, not a failure

	// OnFinish, when set, is called once per job that reaches a terminal
	// outcome. Jobs interrupted by Shutdown do not finish.
	OnFinish func(Job, Outcome)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = DefaultMaxFailures
	}
	if o.MinRunes <= 0 {
		o.MinRunes = DefaultMinRunes
	}
	return o
}

// Worker runs queued jobs, one goroutine per listing. Jobs are detached from
// the request that enqueued them and only stop on success, budget exhaustion,
// or Shutdown.
type Worker struct {
	q     *Queue
	tr    translate.Translator
	patch Patcher
	opts  Options

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	stopped bool
}

// NewWorker wires a Worker. Nothing runs until Start or Enqueue.
func NewWorker(q *Queue, tr translate.Translator, p Patcher, opts Options) *Worker {
	base, cancel := context.WithCancel(context.Background())
	return &Worker{
		q:       q,
		tr:      tr,
		patch:   p,
		opts:    opts.withDefaults(),
		base:    base,
		cancel:  cancel,
		running: map[string]bool{},
	}
}

// Start resumes every persisted job and returns how many were started.
func (w *Worker) Start(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	jobs, err := w.q.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range jobs {
		if w.spawn(j) {
			n++
		}
	}
	if n > 0 {
		log.Info().Int("jobs", n).Msg("resumed translation back-fill jobs")
	}
	return n, nil
}

// Enqueue persists j and starts it without blocking the caller. ctx only
// bounds the enqueue itself; the job outlives it.
func (w *Worker) Enqueue(ctx context.Context, j Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now
	}
	j.UpdatedAt = now
	if err := w.q.Put(j); err != nil {
		return err
	}
	if !w.spawn(j) {
		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return ErrStopped
		}
	}
	return nil
}

// Running reports how many jobs are looping.
func (w *Worker) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.running)
}

// Shutdown stops every job and waits for them to return or ctx to expire.
// Interrupted jobs stay persisted.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) spawn(j Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.running[j.ListingID] {
		return false
	}
	w.running[j.ListingID] = true
	w.wg.Add(1)
	jobsRunning.Inc()
	go w.run(j)
	return true
}

func (w *Worker) release(id string) {
	w.mu.Lock()
	delete(w.running, id)
	w.mu.Unlock()
	jobsRunning.Dec()
	w.wg.Done()
}

func (w *Worker) finish(j Job, o Outcome) {
	if err := w.q.Delete(j.ListingID); err != nil {
		log.Error().Err(err).Str("listing_id", j.ListingID).Msg("delete back-fill job")
	}
	jobsTotal.WithLabelValues(string(o)).Inc()
	ev := log.Info()
	if o != OutcomePatched {
		ev = log.Warn()
	}
	ev.Str("listing_id", j.ListingID).
		Str("outcome", string(o)).
		Int("attempts", j.Attempts).
		Msg("translation back-fill finished")
	if w.opts.OnFinish != nil {
		w.opts.OnFinish(j, o)
	}
}

func (w *Worker) run(j Job) {
	defer w.release(j.ListingID)
	ctx := w.base
	lg := log.With().Str("listing_id", j.ListingID).Str("target", j.Target).Logger()

	// A resumed job may already be over budget if the process died between
	// the attempt and its cleanup.
	if o, done := w.exhausted(j); done {
		w.finish(j, o)
		return
	}

	for {
		text := strings.TrimSpace(w.tr.Translate(ctx, j.Text, j.Source, j.Target))
		if ctx.Err() != nil {
			return
		}
		j.Attempts++

		var result string
		switch {
		case text == "":
			j.Failures++
			result = "empty"
		case utf8.RuneCountInString(text) < w.opts.MinRunes:
			j.Failures = 0
			result = "short"
		default:
			err := w.patch.PatchDescription(ctx, j.ListingID, j.Target, text)
			switch {
			case err == nil:
				attemptsTotal.WithLabelValues("ok").Inc()
				w.finish(j, OutcomePatched)
				return
			case errors.Is(err, ErrListingGone):
				attemptsTotal.WithLabelValues("patch_error").Inc()
				w.finish(j, OutcomeOrphaned)
				return
			case ctx.Err() != nil:
				return
			}
			lg.Warn().Err(err).Int("attempt", j.Attempts).Msg("patch translated description")
			j.Failures++
			result = "patch_error"
		}
		attemptsTotal.WithLabelValues(result).Inc()

		if o, done := w.exhausted(j); done {
			w.finish(j, o)
			return
		}

		j.UpdatedAt = time.Now().UTC()
		if err := w.q.Put(j); err != nil {
			lg.Error().Err(err).Msg("persist back-fill progress")
		}

		t := time.NewTimer(w.opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (w *Worker) exhausted(j Job) (Outcome, bool) {
	switch {
	case j.Attempts >= w.opts.MaxAttempts:
		return OutcomeExhaustedAttempts, true
	case j.Failures >= w.opts.MaxFailures:
		return OutcomeExhaustedFailures, true
	}
	return "", false
}
