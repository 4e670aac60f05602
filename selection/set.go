package selection

import (
	"encoding/json"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Set is an immutable, duplicate-free set of identifiers.
// The zero value is the empty set. Operations return new Sets, so a Set can be
// broadcast to many views without copying.
type Set struct {
	m map[string]struct{}
}

// NewSet returns a set of ids; duplicates collapse.
func NewSet(ids ...string) Set {
	if len(ids) == 0 {
		return Set{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

func (s Set) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

func (s Set) Len() int {
	return len(s.m)
}

// IDs returns the members sorted, for display and encoding.
func (s Set) IDs() []string {
	ids := maps.Keys(s.m)
	slices.Sort(ids)
	return ids
}

// Union returns s ∪ ids.
func (s Set) Union(ids ...string) Set {
	m := maps.Clone(s.m)
	if m == nil {
		m = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

// Toggle returns the symmetric difference of s and {id}.
func (s Set) Toggle(id string) Set {
	m := maps.Clone(s.m)
	if m == nil {
		m = make(map[string]struct{}, 1)
	}
	if _, ok := m[id]; ok {
		delete(m, id)
	} else {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

func (s Set) Equal(o Set) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for id := range s.m {
		if _, ok := o.m[id]; !ok {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	return "{" + strings.Join(s.IDs(), ", ") + "}"
}

func (s Set) MarshalJSON() ([]byte, error) {
	ids := s.IDs()
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSet(ids...)
	return nil
}
