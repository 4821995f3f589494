package diff_test

import (
	"testing"

	"github.com/ha1tch/fieldsync/pkg/diff"
	"github.com/stretchr/testify/assert"
)

type row struct {
	ID    *int64
	Start string
}

func id(v int64) *int64 { return &v }

var rowKey = diff.PtrKey(func(r row) *int64 { return r.ID })

func TestCompute_PeriodScenario(t *testing.T) {
	existing := []int64{1, 2}
	desired := []row{
		{ID: id(1), Start: "2023-01-02"},
		{Start: "2023-03-01"},
	}

	res := diff.Compute(existing, desired, rowKey)

	assert.Equal(t, []row{{Start: "2023-03-01"}}, res.Insert)
	assert.Equal(t, []row{{ID: id(1), Start: "2023-01-02"}}, res.Update)
	assert.Equal(t, []int64{2}, res.Delete)
	assert.False(t, res.Empty())
}

func TestCompute_EmptyDesiredDeletesAll(t *testing.T) {
	res := diff.Compute([]int64{10, 11}, []row{}, rowKey)

	assert.Empty(t, res.Insert)
	assert.Empty(t, res.Update)
	assert.Equal(t, []int64{10, 11}, res.Delete)
}

func TestCompute_NothingToDo(t *testing.T) {
	res := diff.Compute([]int64{}, []row{}, rowKey)
	assert.True(t, res.Empty())
}

func TestCompute_DuplicateLastOccurrenceWins(t *testing.T) {
	desired := []row{
		{ID: id(3), Start: "first"},
		{ID: id(4), Start: "other"},
		{ID: id(3), Start: "last"},
	}

	res := diff.Compute([]int64{3, 4}, desired, rowKey)

	assert.Equal(t, []row{{ID: id(3), Start: "last"}, {ID: id(4), Start: "other"}}, res.Update)
	assert.Empty(t, res.Delete)
	assert.Equal(t, []int64{3}, diff.Duplicates(desired, rowKey))
}

// Completeness: delete = E \ D, insert = unkeyed rows, update = keyed rows.
func TestCompute_SetCompleteness(t *testing.T) {
	cases := []struct {
		name     string
		existing []int64
		desired  []row
	}{
		{"disjoint", []int64{1, 2, 3}, []row{{Start: "a"}, {Start: "b"}}},
		{"subset", []int64{1, 2, 3}, []row{{ID: id(2)}}},
		{"mixed", []int64{5, 6, 7, 8}, []row{{ID: id(8)}, {}, {ID: id(5)}, {}}},
		{"no existing", nil, []row{{}, {}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := diff.Compute(tc.existing, tc.desired, rowKey)

			desiredKeys := map[int64]bool{}
			unkeyed := 0
			for _, r := range tc.desired {
				if r.ID == nil {
					unkeyed++
					continue
				}
				desiredKeys[*r.ID] = true
			}

			var wantDelete []int64
			for _, k := range tc.existing {
				if !desiredKeys[k] {
					wantDelete = append(wantDelete, k)
				}
			}

			assert.Equal(t, wantDelete, res.Delete)
			assert.Len(t, res.Insert, unkeyed)
			assert.Len(t, res.Update, len(desiredKeys))
			for _, u := range res.Update {
				assert.True(t, desiredKeys[*u.ID])
			}
		})
	}
}
