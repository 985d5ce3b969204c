package domain

import "sort"

// DeletionSet holds the ids a client explicitly removed.
type DeletionSet map[string]struct{}

// NewDeletionSet builds a set from ids, ignoring empty entries.
func NewDeletionSet(ids ...string) DeletionSet {
	set := make(DeletionSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Has reports whether id was deleted.
func (s DeletionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge reconciles the items a client submitted with the stored document.
//
// Incoming items win over stored ones unless the stored copy carries a
// strictly newer UpdatedAt. Stored items missing from incoming are kept;
// only ids in deleted are removed. The result is sorted by Pos and
// renumbered densely.
func Merge(existing Document, incoming []Item, deleted DeletionSet) []Item {
	stored := make(map[string]Item, len(existing.Items))
	for _, item := range existing.Items {
		stored[item.ID] = item
	}

	merged := make([]Item, 0, len(incoming)+len(existing.Items))
	slot := make(map[string]int, len(incoming)+len(existing.Items))
	put := func(item Item) {
		if i, ok := slot[item.ID]; ok {
			merged[i] = item
			return
		}
		slot[item.ID] = len(merged)
		merged = append(merged, item)
	}

	for _, item := range incoming {
		if deleted.Has(item.ID) {
			continue
		}
		if prev, ok := stored[item.ID]; ok && prev.UpdatedAt > item.UpdatedAt {
			put(prev)
			continue
		}
		put(item)
	}
	for _, item := range existing.Items {
		if deleted.Has(item.ID) {
			continue
		}
		if _, ok := slot[item.ID]; ok {
			continue
		}
		put(item)
	}

	return SortAndRenumber(merged)
}

// SortAndRenumber orders items by Pos, keeping insertion order for equal
// positions, and rewrites Pos to 0..N-1.
func SortAndRenumber(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	for i := range out {
		out[i].Pos = float64(i)
	}
	return out
}
