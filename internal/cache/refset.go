package cache

import (
	"slices"
	"sort"
)

// RefSet is a set of item ids kept as a sorted slice so it serialises as a
// plain list in every backend.
type RefSet []string

// NewRefSet builds a set from ids, dropping duplicates.
func NewRefSet(ids ...string) RefSet {
	var s RefSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Contains reports whether id is in the set.
func (s RefSet) Contains(id string) bool {
	if !s.normalised() {
		return slices.Contains(s, id)
	}
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// Add inserts id and reports whether the set changed. A list read back from a
// record written elsewhere is normalised first.
func (s *RefSet) Add(id string) bool {
	s.normalise()
	cur := *s
	i := sort.SearchStrings(cur, id)
	if i < len(cur) && cur[i] == id {
		return false
	}
	cur = append(cur, "")
	copy(cur[i+1:], cur[i:])
	cur[i] = id
	*s = cur
	return true
}

// Remove deletes id and reports whether the set changed.
func (s *RefSet) Remove(id string) bool {
	s.normalise()
	cur := *s
	i := sort.SearchStrings(cur, id)
	if i >= len(cur) || cur[i] != id {
		return false
	}
	*s = append(cur[:i], cur[i+1:]...)
	return true
}

// normalised reports whether s is strictly increasing, i.e. sorted without
// duplicates.
func (s RefSet) normalised() bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] >= s[i] {
			return false
		}
	}
	return true
}

func (s *RefSet) normalise() {
	if s.normalised() {
		return
	}
	out := slices.Clone(*s)
	slices.Sort(out)
	*s = slices.Compact(out)
}

// Clone returns an independent copy. Stored values are normalised so that
// records written with unsorted or duplicated ids read back as a proper set.
func (s RefSet) Clone() RefSet {
	if s == nil {
		return nil
	}
	out := slices.Clone(s)
	out.normalise()
	return out
}
