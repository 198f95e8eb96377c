package translate

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultDebounce is the quiet period before an interactive suggestion fires.
const DefaultDebounce = time.Second

// MinSourceRunes is the length the typed slot must reach before a suggestion
// is attempted.
const MinSourceRunes = 20

// Reasons a suggestion did not produce text.
const (
	ReasonSuperseded     = "superseded"
	ReasonCancelled      = "cancelled"
	ReasonUnsupported    = "unsupported_language"
	ReasonTooShort       = "too_short"
	ReasonTargetFilled   = "target_filled"
	ReasonTranslateEmpty = "translation_unavailable"
)

// SuggestRequest is the form state at the time of a keystroke.
type SuggestRequest struct {
	BaseLang      string // UI base language, "es" or "en"
	DescriptionES string
	DescriptionEN string
}

// Suggestion is the outcome of one debounced call. When Fired is true, Text
// should populate Field (description_es or description_en).
type Suggestion struct {
	Fired  bool   `json:"fired"`
	Field  string `json:"field,omitempty"`
	Lang   string `json:"lang,omitempty"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type pending struct {
	cancel context.CancelFunc
}

// Debouncer runs interactive translation suggestions. Calls are grouped by
// key (one key per editing session); a newer call for a key cancels the older
// one, so at most one translation per key is in flight.
type Debouncer struct {
	tr    Translator
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pending
}

// NewDebouncer builds a Debouncer. A non-positive delay selects DefaultDebounce.
func NewDebouncer(tr Translator, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{tr: tr, delay: delay, pending: map[string]*pending{}}
}

func (d *Debouncer) register(ctx context.Context, key string) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(ctx)
	me := &pending{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.cancel()
	}
	d.pending[key] = me
	d.mu.Unlock()

	return callCtx, func() {
		cancel()
		d.mu.Lock()
		if d.pending[key] == me {
			delete(d.pending, key)
		}
		d.mu.Unlock()
	}
}

// InFlight returns the number of keys with a pending call.
func (d *Debouncer) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Suggest waits for the debounce period and, if no newer call for key arrived
// and the form state qualifies, translates the typed slot into the empty one.
func (d *Debouncer) Suggest(ctx context.Context, key string, req SuggestRequest) Suggestion {
	callCtx, done := d.register(ctx, key)
	defer done()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-callCtx.Done():
		return d.interrupted(ctx)
	case <-timer.C:
	}

	var src, dst, text, other, field string
	switch strings.ToLower(strings.TrimSpace(req.BaseLang)) {
	case "es":
		src, dst, text, other, field = "es", "en", req.DescriptionES, req.DescriptionEN, "description_en"
	case "en":
		src, dst, text, other, field = "en", "es", req.DescriptionEN, req.DescriptionES, "description_es"
	default:
		return Suggestion{Reason: ReasonUnsupported}
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinSourceRunes {
		return Suggestion{Reason: ReasonTooShort}
	}
	if strings.TrimSpace(other) != "" {
		return Suggestion{Reason: ReasonTargetFilled}
	}

	out := d.tr.Translate(callCtx, text, src, dst)
	if callCtx.Err() != nil {
		return d.interrupted(ctx)
	}
	if out == "" {
		return Suggestion{Reason: ReasonTranslateEmpty}
	}
	return Suggestion{Fired: true, Field: field, Lang: dst, Text: out}
}

func (d *Debouncer) interrupted(parent context.Context) Suggestion {
	if parent.Err() != nil {
		return Suggestion{Reason: ReasonCancelled}
	}
	return Suggestion{Reason: ReasonSuperseded}
}
