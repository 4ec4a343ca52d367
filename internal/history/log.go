// Package history holds the per-session record of answered questions.
package history

import (
	"iter"
	"strings"
	"sync"
)

// Exchange is one answered question. Answer is already sanitized.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines turns CRLF and lone CR line breaks into LF. CSV readers
// fold CRLF inside quoted fields, so stored text only ever carries LF.
func NormalizeNewlines(s string) string {
	return newlines.Replace(s)
}

type Option func(*Log)

// WithMirror registers fn to be called after every Append. fn must not block.
func WithMirror(fn func(Exchange)) Option {
	return func(l *Log) { l.mirror = fn }
}

// Log is an ordered, in-memory list of exchanges. Entries are only ever
// appended; Clear drops all of them at once.
type Log struct {
	mu     sync.RWMutex
	items  []Exchange
	mirror func(Exchange)
}

func NewLog(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores ex with its line breaks normalized to LF.
func (l *Log) Append(ex Exchange) {
	ex.Question = NormalizeNewlines(ex.Question)
	ex.Answer = NormalizeNewlines(ex.Answer)

	l.mu.Lock()
	l.items = append(l.items, ex)
	l.mu.Unlock()

	if l.mirror != nil {
		l.mirror(ex)
	}
}

// Latest returns the most recently appended exchange.
func (l *Log) Latest() (Exchange, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.items) == 0 {
		return Exchange{}, false
	}
	return l.items[len(l.items)-1], true
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}

// snapshot is safe to read without the lock: items is append-only and Clear
// replaces the slice rather than overwriting it.
func (l *Log) snapshot() []Exchange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[:len(l.items):len(l.items)]
}

// All yields exchanges newest first. Each iteration reads a fresh snapshot.
func (l *Log) All() iter.Seq[Exchange] {
	return func(yield func(Exchange) bool) {
		items := l.snapshot()
		for i := len(items) - 1; i >= 0; i-- {
			if !yield(items[i]) {
				return
			}
		}
	}
}

// Questions yields the asked questions newest first.
func (l *Log) Questions() iter.Seq[string] {
	return func(yield func(string) bool) {
		for ex := range l.All() {
			if !yield(ex.Question) {
				return
			}
		}
	}
}

// Search yields exchanges whose question contains term, newest first.
// Matching ignores case; an empty term matches everything.
func (l *Log) Search(term string) iter.Seq[Exchange] {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(yield func(Exchange) bool) {
		for ex := range l.All() {
			if term != "" && !strings.Contains(strings.ToLower(ex.Question), term) {
				continue
			}
			if !yield(ex) {
				return
			}
		}
	}
}

// Exchanges returns a copy in insertion order.
func (l *Log) Exchanges() []Exchange {
	items := l.snapshot()
	out := make([]Exchange, len(items))
	copy(out, items)
	return out
}
