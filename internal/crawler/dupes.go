package crawler

const defaultDuplicateThreshold = 5

// dupeCounter tracks the consecutive-duplicate streak that triggers an
// early stop. It is owned by exactly one engine, so no locking.
type dupeCounter struct {
	threshold int
	count     int
}

func newDupeCounter(threshold int) *dupeCounter {
	if threshold <= 0 {
		threshold = defaultDuplicateThreshold
	}
	return &dupeCounter{threshold: threshold}
}

// Duplicate counts one more consecutive hit and reports whether the
// streak reached the threshold.
func (c *dupeCounter) Duplicate() bool {
	c.count++
	return c.count >= c.threshold
}

// Reset clears the streak. Called on every non-duplicate entry.
func (c *dupeCounter) Reset() { c.count = 0 }

// Count returns the current streak length.
func (c *dupeCounter) Count() int { return c.count }
