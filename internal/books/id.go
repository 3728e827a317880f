package books

import (
	"strconv"
	"sync"
	"time"
)

// idGen hands out ids derived from the wall clock in milliseconds.
// Two calls within the same millisecond still get distinct ids.
type idGen struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newIDGen() *idGen {
	return &idGen{now: time.Now}
}

func (g *idGen) next(taken func(string) bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.now().UnixMilli()
	if n <= g.last {
		n = g.last + 1
	}
	for taken != nil && taken(strconv.FormatInt(n, 10)) {
		n++
	}
	g.last = n
	return strconv.FormatInt(n, 10)
}
