// Package window keeps a bounded per-key history of recent samples.
package window

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKey is returned when a key that is not tracked is queried.
var ErrUnknownKey = errors.New("window: unknown key")

// Sample is one value observed at one tick.
type Sample struct {
	At    time.Time
	Value float64
}

// Entry is one live key observed during the current tick.
type Entry[K comparable] struct {
	Key   K
	Name  string
	Value float64
}

type history struct {
	name    string
	samples []Sample
}

// Tracker retains the last size samples per key and forgets keys that stop
// showing up. It is not safe for concurrent use.
type Tracker[K comparable] struct {
	size    int
	entries map[K]*history
}

// New returns a tracker that keeps size samples per key.
func New[K comparable](size int) (*Tracker[K], error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	return &Tracker[K]{size: size, entries: make(map[K]*history)}, nil
}

// Size is the window length N.
func (t *Tracker[K]) Size() int { return t.size }

// Len is the number of keys currently tracked.
func (t *Tracker[K]) Len() int { return len(t.entries) }

// Update records one sample per entry at now and drops every key that is not
// part of entries.
func (t *Tracker[K]) Update(now time.Time, entries []Entry[K]) {
	live := make(map[K]struct{}, len(entries))
	for _, e := range entries {
		live[e.Key] = struct{}{}
		h, ok := t.entries[e.Key]
		if !ok {
			h = &history{samples: make([]Sample, 0, t.size)}
			t.entries[e.Key] = h
		}
		h.name = e.Name
		if len(h.samples) == t.size {
			// shift in place so the backing array never grows past size
			copy(h.samples, h.samples[1:])
			h.samples = h.samples[:t.size-1]
		}
		h.samples = append(h.samples, Sample{At: now, Value: e.Value})
	}

	for key := range t.entries {
		if _, ok := live[key]; !ok {
			delete(t.entries, key)
		}
	}
}

// KeysWithFullWindow returns the keys holding exactly size samples, in no particular order.
func (t *Tracker[K]) KeysWithFullWindow() []K {
	keys := make([]K, 0, len(t.entries))
	for key, h := range t.entries {
		if len(h.samples) == t.size {
			keys = append(keys, key)
		}
	}
	return keys
}

// Average is the arithmetic mean of every retained value for key.
func (t *Tracker[K]) Average(key K) (float64, error) {
	h, ok := t.entries[key]
	if !ok || len(h.samples) == 0 {
		return 0, fmt.Errorf("average of %v: %w", key, ErrUnknownKey)
	}
	var sum float64
	for _, s := range h.samples {
		sum += s.Value
	}
	return sum / float64(len(h.samples)), nil
}

// Name returns the name last reported for key.
func (t *Tracker[K]) Name(key K) (string, error) {
	h, ok := t.entries[key]
	if !ok {
		return "", fmt.Errorf("name of %v: %w", key, ErrUnknownKey)
	}
	return h.name, nil
}

// Samples returns a copy of the retained samples for key, oldest first.
func (t *Tracker[K]) Samples(key K) ([]Sample, error) {
	h, ok := t.entries[key]
	if !ok {
		return nil, fmt.Errorf("samples of %v: %w", key, ErrUnknownKey)
	}
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out, nil
}

// Span returns the oldest and newest retained values for key.
func (t *Tracker[K]) Span(key K) (first, last float64, err error) {
	h, ok := t.entries[key]
	if !ok || len(h.samples) == 0 {
		return 0, 0, fmt.Errorf("span of %v: %w", key, ErrUnknownKey)
	}
	return h.samples[0].Value, h.samples[len(h.samples)-1].Value, nil
}
