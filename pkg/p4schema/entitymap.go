// Package p4schema models a P4Info document: tables, actions, profiles,
// counters, meters, registers, digests, value sets, controller packet
// metadata, externs and the type_info section. Entities are indexed by id,
// full name and alias so callers can use whichever form is convenient.
package p4schema

import (
	"strings"

	"github.com/finsy-network/finsy/pkg/util"
)

// EntityMap indexes schema entities by id, name and alias. Name collisions
// across entities of the same kind are a fatal schema error.
type EntityMap[T any] struct {
	kind   string
	byID   map[uint32]T
	byName map[string]T
	items  []T
}

func newEntityMap[T any](kind string) *EntityMap[T] {
	return &EntityMap[T]{
		kind:   kind,
		byID:   make(map[uint32]T),
		byName: make(map[string]T),
	}
}

// insert registers an entity under its id and each distinct name. With
// splitSuffix, the last dot-separated component of the final name is added
// as a shorthand; shorthand collisions are skipped rather than fatal since
// the full name remains usable.
func (m *EntityMap[T]) insert(e T, id uint32, splitSuffix bool, names ...string) error {
	if id != 0 {
		if _, ok := m.byID[id]; ok {
			return util.NewSchemaError(m.kind, names[0], "duplicate id")
		}
		m.byID[id] = e
	}
	m.items = append(m.items, e)

	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := m.byName[name]; ok {
			return util.NewSchemaError(m.kind, name, "duplicate name")
		}
		m.byName[name] = e
	}
	if splitSuffix && len(names) > 0 {
		last := names[len(names)-1]
		if i := strings.LastIndexByte(last, '.'); i >= 0 {
			suffix := last[i+1:]
			if suffix != "" && !seen[suffix] {
				if _, ok := m.byName[suffix]; !ok {
					m.byName[suffix] = e
				}
			}
		}
	}
	return nil
}

// Get looks up an entity by name or alias.
func (m *EntityMap[T]) Get(name string) (T, error) {
	e, ok := m.byName[name]
	if !ok {
		var zero T
		return zero, util.NewLookupError(m.kind, name)
	}
	return e, nil
}

// GetByID looks up an entity by its P4Runtime id.
func (m *EntityMap[T]) GetByID(id uint32) (T, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Len returns the number of entities.
func (m *EntityMap[T]) Len() int {
	return len(m.items)
}

// All returns entities in declaration order.
func (m *EntityMap[T]) All() []T {
	return m.items
}
