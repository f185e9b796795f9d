package commitpool

import "sort"

// SortOrder selects ascending or descending height iteration for getAll.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// commitIndex is an in-memory container keyed by height with secondary
// uniqueness by (height, validatorAddress). It supports range queries,
// ordered iteration, and per-commit removal. The pool holds three
// independent instances: local, nonGossiped, gossiped.
type commitIndex struct {
	byHeight map[uint64][]SingleCommit
	keys     map[CommitKey]struct{}
}

func newCommitIndex() *commitIndex {
	return &commitIndex{
		byHeight: make(map[uint64][]SingleCommit),
		keys:     make(map[CommitKey]struct{}),
	}
}

// add inserts c if (c.height, c.validatorAddress) is not already present.
// Duplicate adds are a no-op; the caller never dedupes.
func (idx *commitIndex) add(c SingleCommit) {
	k := c.Key()
	if _, ok := idx.keys[k]; ok {
		return
	}
	idx.keys[k] = struct{}{}
	idx.byHeight[c.Height] = append(idx.byHeight[c.Height], c)
}

// deleteSingle removes c if present, by its uniqueness key.
func (idx *commitIndex) deleteSingle(c SingleCommit) {
	k := c.Key()
	if _, ok := idx.keys[k]; !ok {
		return
	}
	delete(idx.keys, k)

	list := idx.byHeight[c.Height]
	for i, existing := range list {
		if existing.Key() == k {
			idx.byHeight[c.Height] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(idx.byHeight[c.Height]) == 0 {
		delete(idx.byHeight, c.Height)
	}
}

// deleteByHeight removes every commit at height h.
func (idx *commitIndex) deleteByHeight(h uint64) {
	for _, c := range idx.byHeight[h] {
		delete(idx.keys, c.Key())
	}
	delete(idx.byHeight, h)
}

// getByHeight returns the ordered list of commits at height h, preserving
// insertion order. The returned slice is a copy; callers must not rely on
// it reflecting later mutations.
func (idx *commitIndex) getByHeight(h uint64) []SingleCommit {
	list := idx.byHeight[h]
	if len(list) == 0 {
		return nil
	}
	out := make([]SingleCommit, len(list))
	copy(out, list)
	return out
}

// exists reports whether c's (height, validatorAddress) key is present.
func (idx *commitIndex) exists(c SingleCommit) bool {
	_, ok := idx.keys[c.Key()]
	return ok
}

// getAll yields commits ordered by height (order), flattening each height's
// insertion-ordered list.
func (idx *commitIndex) getAll(order SortOrder) []SingleCommit {
	heights := make([]uint64, 0, len(idx.byHeight))
	for h := range idx.byHeight {
		heights = append(heights, h)
	}
	if order == Ascending {
		sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	} else {
		sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })
	}

	out := make([]SingleCommit, 0, len(idx.keys))
	for _, h := range heights {
		out = append(out, idx.byHeight[h]...)
	}
	return out
}

// evictUpTo removes every commit with height <= maxHeight and returns the
// removed commits, for scratch-then-commit staging by callers that need to
// inspect what was evicted.
func (idx *commitIndex) evictUpTo(maxHeight uint64) []SingleCommit {
	var evicted []SingleCommit
	for h, list := range idx.byHeight {
		if h <= maxHeight {
			evicted = append(evicted, list...)
		}
	}
	for _, c := range evicted {
		idx.deleteSingle(c)
	}
	return evicted
}

// len reports the total number of commits held across all heights.
func (idx *commitIndex) len() int {
	return len(idx.keys)
}

// clone returns a deep copy, used by the job to stage mutations in scratch
// indices and commit only on success (no partial effects, §5).
func (idx *commitIndex) clone() *commitIndex {
	c := newCommitIndex()
	for h, list := range idx.byHeight {
		cp := make([]SingleCommit, len(list))
		copy(cp, list)
		c.byHeight[h] = cp
	}
	for k := range idx.keys {
		c.keys[k] = struct{}{}
	}
	return c
}
