package taste

import (
	"sort"
	"time"
)

// Entry is one ranked pattern value.
type Entry struct {
	Value    string    `json:"value"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// List is an ordered list of pattern entries.
type List []Entry

// Histogram maps a label to its count.
type Histogram map[string]int

// Eviction selects which entries survive when a list is truncated to its cap.
type Eviction string

const (
	// EvictRanked keeps the highest ranked entries (count, then recency, then value).
	EvictRanked Eviction = "ranked"
	// EvictRecency keeps the most recently seen entries.
	EvictRecency Eviction = "recency"
)

// ParseEviction returns the eviction policy for a config value, defaulting to ranked.
func ParseEviction(s string) Eviction {
	if Eviction(s) == EvictRecency {
		return EvictRecency
	}
	return EvictRanked
}

// before reports whether a ranks ahead of b: count desc, lastSeen desc, value asc.
func before(a, b Entry) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if !a.LastSeen.Equal(b.LastSeen) {
		return a.LastSeen.After(b.LastSeen)
	}
	return a.Value < b.Value
}

func newer(a, b Entry) bool {
	if !a.LastSeen.Equal(b.LastSeen) {
		return a.LastSeen.After(b.LastSeen)
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Value < b.Value
}

// Rank sorts l in place with the ranking order and returns it.
func Rank(l List) List {
	sort.SliceStable(l, func(i, j int) bool { return before(l[i], l[j]) })
	return l
}

// Truncate orders l by the eviction policy and cuts it to limit entries.
// A limit <= 0 keeps everything.
func Truncate(l List, limit int, policy Eviction) List {
	if policy == EvictRecency {
		sort.SliceStable(l, func(i, j int) bool { return newer(l[i], l[j]) })
	} else {
		Rank(l)
	}
	if limit > 0 && len(l) > limit {
		l = l[:limit]
	}
	return l
}

// Values returns the entry values in order.
func (l List) Values() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Value
	}
	return out
}

// Head returns at most n values.
func (l List) Head(n int) []string {
	if n < len(l) {
		l = l[:n]
	}
	return l.Values()
}

// Has reports whether value is in l.
func (l List) Has(value string) bool {
	return l.index(value) >= 0
}

func (l List) index(value string) int {
	for i, e := range l {
		if e.Value == value {
			return i
		}
	}
	return -1
}

// bump increments value's count, adding it when absent.
func (l List) bump(value string, at time.Time) List {
	if i := l.index(value); i >= 0 {
		l[i].Count++
		if at.After(l[i].LastSeen) {
			l[i].LastSeen = at
		}
		return l
	}
	return append(l, Entry{Value: value, Count: 1, LastSeen: at})
}

// without removes value from l.
func (l List) without(value string) List {
	i := l.index(value)
	if i < 0 {
		return l
	}
	return append(l[:i], l[i+1:]...)
}

func (l List) clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

func (h Histogram) clone() Histogram {
	if h == nil {
		return nil
	}
	out := make(Histogram, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// counter accumulates a multiset of normalized values.
type counter struct {
	entries map[string]*Entry
}

func newCounter() *counter {
	return &counter{entries: make(map[string]*Entry)}
}

func (c *counter) add(value string, at time.Time) {
	v, ok := normalize(value)
	if !ok {
		return
	}
	e, exists := c.entries[v]
	if !exists {
		e = &Entry{Value: v}
		c.entries[v] = e
	}
	e.Count++
	if at.After(e.LastSeen) {
		e.LastSeen = at
	}
}

func (c *counter) addAll(values []string, at time.Time) {
	for _, v := range values {
		c.add(v, at)
	}
}

func (c *counter) has(value string) bool {
	_, ok := c.entries[value]
	return ok
}

// top returns the n highest ranked entries, or all of them when n <= 0.
func (c *counter) top(n int) List {
	return c.topExcluding(n, nil)
}

// topExcluding is top restricted to values absent from exclude.
func (c *counter) topExcluding(n int, exclude *counter) List {
	l := make(List, 0, len(c.entries))
	for _, e := range c.entries {
		if exclude != nil && exclude.has(e.Value) {
			continue
		}
		l = append(l, *e)
	}
	return Truncate(l, n, EvictRanked)
}

func (c *counter) histogram() Histogram {
	h := make(Histogram, len(c.entries))
	for v, e := range c.entries {
		h[v] = e.Count
	}
	return h
}

// mode returns the most frequent value, ties broken lexicographically.
func (c *counter) mode(fallback string) string {
	best := ""
	bestCount := 0
	for v, e := range c.entries {
		if e.Count > bestCount || (e.Count == bestCount && v < best) {
			best, bestCount = v, e.Count
		}
	}
	if best == "" {
		return fallback
	}
	return best
}
