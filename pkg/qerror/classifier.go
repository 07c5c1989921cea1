package qerror

import (
	"sync"

	"go.uber.org/zap"
)

const defaultRingSize = 256

// Classifier records classified errors into a bounded ring for diagnostics.
// Safe for concurrent use; when full, the oldest entry is dropped.
type Classifier struct {
	logger *zap.Logger

	mu   sync.Mutex
	ring []*Error
	next int
	full bool
}

// NewClassifier returns a classifier retaining up to size recent errors.
// size <= 0 falls back to the default.
func NewClassifier(logger *zap.Logger, size int) *Classifier {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Classifier{
		logger: logger,
		ring:   make([]*Error, size),
	}
}

// Classify builds an error of the given kind, records it, and returns it.
func (c *Classifier) Classify(kind Kind, details, query, userID string) *Error {
	e := New(kind, details).WithQuery(query, userID)
	c.record(e)
	return e
}

func (c *Classifier) record(e *Error) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("query error classified",
			zap.String("kind", string(e.Kind)),
			zap.String("code", e.Code),
			zap.String("details", e.Details),
			zap.String("user_id", e.UserID))
	}
}

// Recent returns up to n recorded errors, newest first.
func (c *Classifier) Recent(n int) []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.ring)
	count := c.next
	if c.full {
		count = size
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]*Error, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + size) % size
		out = append(out, c.ring[idx])
	}
	return out
}

// Len returns the number of retained errors.
func (c *Classifier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return len(c.ring)
	}
	return c.next
}
