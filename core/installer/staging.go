package installer

import (
	"maps"
	"slices"
)

// stagedBundles holds bundle contents waiting for the next save. A path lives
// in at most one of the two maps.
type stagedBundles struct {
	fresh   map[string][]byte
	changed map[string][]byte
	notes   string
}

func newStagedBundles() stagedBundles {
	return stagedBundles{
		fresh:   map[string][]byte{},
		changed: map[string][]byte{},
	}
}

// put stages data for path. A path staged earlier keeps its classification.
func (s *stagedBundles) put(path string, data []byte, exists bool) (changed bool) {
	if _, ok := s.fresh[path]; ok {
		s.fresh[path] = data
		return false
	}
	if _, ok := s.changed[path]; ok {
		s.changed[path] = data
		return true
	}
	if exists {
		s.changed[path] = data
		return true
	}
	s.fresh[path] = data
	return false
}

func (s *stagedBundles) empty() bool {
	return len(s.fresh) == 0 && len(s.changed) == 0
}

// all yields every staged path with its content.
func (s *stagedBundles) all() map[string][]byte {
	out := make(map[string][]byte, len(s.fresh)+len(s.changed))
	maps.Copy(out, s.fresh)
	maps.Copy(out, s.changed)
	return out
}

// take hands the staged set over and resets the receiver, so the caller owns
// the returned maps exclusively.
func (s *stagedBundles) take() stagedBundles {
	out := *s
	*s = newStagedBundles()
	return out
}

func (s stagedBundles) freshPaths() []string {
	return slices.Sorted(maps.Keys(s.fresh))
}

func (s stagedBundles) changedPaths() []string {
	return slices.Sorted(maps.Keys(s.changed))
}
