// Package quota implements per-user sliding-window quotas over a shared ledger.
//
// Every admitted call appends one timestamped event under the key
// "ratelimit:user:<class>:<userID>". A call is admitted when fewer than Limit
// events fall inside the trailing Window. The check and the append happen as
// one atomic step in the backing Store, so concurrent gateway instances never
// admit more than Limit calls per window for the same key.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Class names a quota-governed operation.
type Class string

const (
	ClassChat       Class = "chat"
	ClassQuiz       Class = "quiz"
	ClassTranscribe Class = "transcribe"
	ClassTTS        Class = "tts"
	ClassMail       Class = "mail"
	ClassExport     Class = "export"
	ClassIdentify   Class = "identify"
)

// Limit is the number of calls allowed within a trailing window.
type Limit struct {
	Limit  int           `json:"limit" yaml:"limit"`
	Window time.Duration `json:"window" yaml:"window"`
}

// DefaultLimits returns the built-in limits for every known class.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassChat:       {Limit: 30, Window: 24 * time.Hour},
		ClassQuiz:       {Limit: 5, Window: 24 * time.Hour},
		ClassTranscribe: {Limit: 200, Window: time.Minute},
		ClassTTS:        {Limit: 20, Window: time.Minute},
		ClassMail:       {Limit: 1000, Window: time.Hour},
		ClassExport:     {Limit: 20, Window: 24 * time.Hour},
		ClassIdentify:   {Limit: 10, Window: 24 * time.Hour},
	}
}

var (
	// ErrUnknownClass is returned for a class with no configured limit.
	ErrUnknownClass = errors.New("quota: unknown resource class")
	// ErrStoreUnavailable wraps any failure of the backing store.
	ErrStoreUnavailable = errors.New("quota: ledger store unavailable")
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Usage is a read-only snapshot of one class for one user.
type Usage struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Window describes the events of a key inside the trailing window.
// Oldest is the zero time when Count is 0.
type Window struct {
	Count  int
	Oldest time.Time
}

// Store is the shared ledger backing the quotas.
type Store interface {
	// Reserve trims events older than now-window, then appends an event at now
	// if fewer than limit remain, as one atomic step. It reports whether the
	// event was appended and the window after the step.
	Reserve(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, bool, error)
	// Count reports the events in [now-window, now] without mutating anything.
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error)
}

// Key is the ledger key of a (class, user) pair.
func Key(userID string, class Class) string {
	return fmt.Sprintf("ratelimit:user:%s:%s", class, userID)
}

// Ledger admits calls against per-class limits.
type Ledger struct {
	store  Store
	limits map[Class]Limit
	now    func() time.Time
}

// NewLedger creates a ledger over store. A nil limits map uses DefaultLimits.
func NewLedger(store Store, limits map[Class]Limit) *Ledger {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Ledger{store: store, limits: limits, now: time.Now}
}

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Limits returns the configured limit for each class.
func (l *Ledger) Limits() map[Class]Limit {
	out := make(map[Class]Limit, len(l.limits))
	for c, lim := range l.limits {
		out[c] = lim
	}
	return out
}

// Admit consumes one unit of class for userID if the window has room.
// A rejected call leaves the ledger unchanged.
func (l *Ledger) Admit(ctx context.Context, userID string, class Class) (Decision, error) {
	lim, ok := l.limits[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	now := l.now()
	w, allowed, err := l.store.Reserve(ctx, Key(userID, class), lim.Limit, lim.Window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	remaining, resetAt := settle(lim, w, now)
	return Decision{Allowed: allowed, Limit: lim.Limit, Remaining: remaining, ResetAt: resetAt}, nil
}

// Usage reports every configured class for userID without consuming quota.
func (l *Ledger) Usage(ctx context.Context, userID string) (map[Class]Usage, error) {
	now := l.now()
	out := make(map[Class]Usage, len(l.limits))
	for _, class := range l.Classes() {
		lim := l.limits[class]
		w, err := l.store.Count(ctx, Key(userID, class), lim.Window, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		remaining, resetAt := settle(lim, w, now)
		out[class] = Usage{Limit: lim.Limit, Used: w.Count, Remaining: remaining, ResetAt: resetAt}
	}
	return out, nil
}

// Classes lists the configured classes in a stable order.
func (l *Ledger) Classes() []Class {
	classes := make([]Class, 0, len(l.limits))
	for c := range l.limits {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// settle computes remaining and resetAt for a window. Events are counted while
// ts >= now-window, so the oldest one stops counting one millisecond after
// oldest+window.
func settle(lim Limit, w Window, now time.Time) (int, time.Time) {
	remaining := lim.Limit - w.Count
	if remaining < 0 {
		remaining = 0
	}
	if w.Count == 0 || w.Oldest.IsZero() {
		return remaining, now.Add(lim.Window)
	}
	return remaining, w.Oldest.Add(lim.Window + time.Millisecond)
}

// cutoffMillis is the inclusive lower bound of the window in unix millis.
func cutoffMillis(now time.Time, window time.Duration) int64 {
	return now.UnixMilli() - window.Milliseconds()
}
