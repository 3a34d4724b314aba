package territory

import (
	"sort"

	"github.com/pyropy/territory/core/model"
)

// changeLog is an append-only, ascending-by-version log keeping at most limit entries.
type changeLog struct {
	entries []model.Change
	limit   int
}

func newChangeLog(limit int) *changeLog {
	return &changeLog{limit: limit}
}

func (l *changeLog) append(c model.Change) {
	l.entries = append(l.entries, c)
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = l.entries[over:]
	}
}

func (l *changeLog) reset() {
	l.entries = nil
}

func (l *changeLog) empty() bool {
	return len(l.entries) == 0
}

func (l *changeLog) len() int {
	return len(l.entries)
}

func (l *changeLog) oldest() uint64 {
	return l.entries[0].Version
}

// since copies every entry with a version greater than v.
func (l *changeLog) since(v uint64) []model.Change {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Version > v
	})

	out := make([]model.Change, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}
