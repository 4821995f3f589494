// Package diff computes the insert/update/delete sets that turn a persisted
// collection into a desired one.
package diff

// Result holds the three change sets of a collection diff
type Result[T any, K comparable] struct {
	Insert []T
	Update []T
	Delete []K
}

// Empty reports whether the diff has nothing to apply
func (r Result[T, K]) Empty() bool {
	return len(r.Insert) == 0 && len(r.Update) == 0 && len(r.Delete) == 0
}

// Compute diffs desired rows against the keys of the existing rows.
//
// Rows for which key reports no identifier are inserts. Keyed rows are updates,
// passed through verbatim. Existing keys that no desired row carries are
// deletes, in existing order. When a key appears more than once in desired the
// last occurrence wins; it takes the position of the first.
func Compute[T any, K comparable](existing []K, desired []T, key func(T) (K, bool)) Result[T, K] {
	var res Result[T, K]

	slot := make(map[K]int)
	for _, row := range desired {
		k, ok := key(row)
		if !ok {
			res.Insert = append(res.Insert, row)
			continue
		}
		if i, seen := slot[k]; seen {
			res.Update[i] = row
			continue
		}
		slot[k] = len(res.Update)
		res.Update = append(res.Update, row)
	}

	for _, k := range existing {
		if _, kept := slot[k]; !kept {
			res.Delete = append(res.Delete, k)
		}
	}
	return res
}

// Duplicates returns the keys that occur more than once in desired, in order of
// first repetition
func Duplicates[T any, K comparable](desired []T, key func(T) (K, bool)) []K {
	seen := make(map[K]int)
	var dups []K
	for _, row := range desired {
		k, ok := key(row)
		if !ok {
			continue
		}
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}

// PtrKey adapts an optional int64 identifier accessor into a key function
func PtrKey[T any](id func(T) *int64) func(T) (int64, bool) {
	return func(row T) (int64, bool) {
		p := id(row)
		if p == nil {
			return 0, false
		}
		return *p, true
	}
}
