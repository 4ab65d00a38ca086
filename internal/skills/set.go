// Package skills holds normalized skill sets and the dictionary-based skill extraction
// used to feed the matcher when skills are not supplied explicitly.
package skills

import (
	"sort"
	"strings"
)

// Set is a set of normalized skill names. The zero value is an empty set ready to use.
type Set struct {
	items map[string]struct{}
}

// Normalize lower-cases a skill, trims it and collapses inner whitespace.
func Normalize(skill string) string {
	return strings.Join(strings.Fields(strings.ToLower(skill)), " ")
}

// New builds a set from raw skill names. Empty names are skipped.
func New(raw ...string) Set {
	s := Set{items: make(map[string]struct{}, len(raw))}
	for _, r := range raw {
		s.add(r)
	}
	return s
}

func (s *Set) add(raw string) {
	name := Normalize(raw)
	if name == "" {
		return
	}
	if s.items == nil {
		s.items = make(map[string]struct{})
	}
	s.items[name] = struct{}{}
}

func (s Set) Len() int {
	return len(s.items)
}

func (s Set) Intersect(other Set) Set {
	out := Set{items: make(map[string]struct{})}
	for name := range s.items {
		if _, ok := other.items[name]; ok {
			out.items[name] = struct{}{}
		}
	}
	return out
}

func (s Set) Union(other Set) Set {
	out := Set{items: make(map[string]struct{}, len(s.items)+len(other.items))}
	for name := range s.items {
		out.items[name] = struct{}{}
	}
	for name := range other.items {
		out.items[name] = struct{}{}
	}
	return out
}

// Difference returns the skills of s that are not present in other.
func (s Set) Difference(other Set) Set {
	out := Set{items: make(map[string]struct{})}
	for name := range s.items {
		if _, ok := other.items[name]; !ok {
			out.items[name] = struct{}{}
		}
	}
	return out
}

// Sorted returns the skills in lexical order.
func (s Set) Sorted() []string {
	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Set) String() string {
	return strings.Join(s.Sorted(), ", ")
}
