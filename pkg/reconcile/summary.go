package reconcile

import (
	"sort"
	"sync"

	"github.com/ha1tch/fieldsync/pkg/models"
	"github.com/rs/zerolog"
)

// Counts are the rows written for one entity kind
type Counts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// Summary accumulates per-kind write counts of one reconciliation. It is
// safe for concurrent use by sibling syncs.
type Summary struct {
	mu     sync.Mutex
	counts map[models.Kind]Counts
}

func newSummary() *Summary {
	return &Summary{counts: make(map[models.Kind]Counts)}
}

func (s *Summary) inserted(kind models.Kind, n int) { s.add(kind, Counts{Inserted: n}) }
func (s *Summary) updated(kind models.Kind, n int)  { s.add(kind, Counts{Updated: n}) }
func (s *Summary) deleted(kind models.Kind, n int)  { s.add(kind, Counts{Deleted: n}) }

func (s *Summary) add(kind models.Kind, c Counts) {
	if c == (Counts{}) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.counts[kind]
	cur.Inserted += c.Inserted
	cur.Updated += c.Updated
	cur.Deleted += c.Deleted
	s.counts[kind] = cur
}

// Get returns the counts for kind
func (s *Summary) Get(kind models.Kind) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// Kinds returns the kinds that saw writes, sorted
func (s *Summary) Kinds() []models.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]models.Kind, 0, len(s.counts))
	for k := range s.counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Total sums the counts of every kind
func (s *Summary) Total() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t Counts
	for _, c := range s.counts {
		t.Inserted += c.Inserted
		t.Updated += c.Updated
		t.Deleted += c.Deleted
	}
	return t
}

// MarshalZerologObject logs the summary as one object per kind
func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	for _, kind := range s.Kinds() {
		c := s.Get(kind)
		e.Dict(string(kind), zerolog.Dict().
			Int("inserted", c.Inserted).
			Int("updated", c.Updated).
			Int("deleted", c.Deleted))
	}
}

// Merge adds the counts of other into s
func (s *Summary) Merge(other *Summary) {
	for _, kind := range other.Kinds() {
		s.add(kind, other.Get(kind))
	}
}

// NewSummary returns an empty summary for callers combining several
// reconciliations
func NewSummary() *Summary {
	return newSummary()
}
