/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package table

import (
	"fmt"
	"sync"
)

// Structure resolves, per table, the factories used to hydrate rows and
// selections and the scopes that can be applied to its selections.
type Structure interface {
	// RegisterScopes adds scopes for a table. A scope replaces an earlier one
	// with the same name.
	RegisterScopes(tableName string, scopes []*Scope) error
	RowFactory(tableName string) RowFactory
	SelectionFactory(tableName string) SelectionFactory
	Scopes(tableName string) []*Scope
	Scope(tableName, name string) *Scope
}

// Registry is a Structure whose factories can be changed.
type Registry interface {
	Structure
	RegisterRowFactory(tableName string, factory RowFactory)
	RegisterSelectionFactory(tableName string, factory SelectionFactory)
}

type tableEntry struct {
	row        RowFactory
	selection  SelectionFactory
	scopes     map[string]*Scope
	scopeOrder []string
}

// BaseStructure is the in-memory Registry. It is safe for concurrent use and
// its zero value is ready to use.
type BaseStructure struct {
	mu     sync.RWMutex
	tables map[string]*tableEntry
}

var _ Registry = (*BaseStructure)(nil)

func NewBaseStructure() *BaseStructure {
	return &BaseStructure{tables: make(map[string]*tableEntry)}
}

// entry must be called with s.mu held for writing.
func (s *BaseStructure) entry(tableName string) *tableEntry {
	if s.tables == nil {
		s.tables = make(map[string]*tableEntry)
	}
	e, ok := s.tables[tableName]
	if !ok {
		e = &tableEntry{scopes: make(map[string]*Scope)}
		s.tables[tableName] = e
	}
	return e
}

func (s *BaseStructure) RegisterRowFactory(tableName string, factory RowFactory) {
	if factory == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(tableName).row = factory
}

func (s *BaseStructure) RegisterSelectionFactory(tableName string, factory SelectionFactory) {
	if factory == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(tableName).selection = factory
}

// RegisterTable registers both factories at once; nil factories are skipped.
func (s *BaseStructure) RegisterTable(tableName string, row RowFactory, selection SelectionFactory) *BaseStructure {
	s.RegisterRowFactory(tableName, row)
	s.RegisterSelectionFactory(tableName, selection)
	return s
}

func (s *BaseStructure) RegisterScopes(tableName string, scopes []*Scope) error {
	for i, scope := range scopes {
		if !scope.valid() {
			return fmt.Errorf("table %s, scope #%d: %w", tableName, i, ErrInvalidScope)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(tableName)
	for _, scope := range scopes {
		if _, exists := e.scopes[scope.Name()]; !exists {
			e.scopeOrder = append(e.scopeOrder, scope.Name())
		}
		e.scopes[scope.Name()] = scope
	}
	return nil
}

func (s *BaseStructure) RowFactory(tableName string) RowFactory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tables[tableName]; ok && e.row != nil {
		return e.row
	}
	return DefaultRowFactory
}

func (s *BaseStructure) SelectionFactory(tableName string) SelectionFactory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tables[tableName]; ok && e.selection != nil {
		return e.selection
	}
	return DefaultSelectionFactory
}

// Scopes returns the table scopes in registration order.
func (s *BaseStructure) Scopes(tableName string) []*Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]*Scope, 0, len(e.scopeOrder))
	for _, name := range e.scopeOrder {
		out = append(out, e.scopes[name])
	}
	return out
}

func (s *BaseStructure) Scope(tableName, name string) *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tables[tableName]; ok {
		return e.scopes[name]
	}
	return nil
}

// EmptyStructure knows no tables: rows and selections stay plain and no
// scope is ever found.
type EmptyStructure struct{}

var _ Structure = EmptyStructure{}

func (EmptyStructure) RegisterScopes(string, []*Scope) error { return nil }

func (EmptyStructure) RowFactory(string) RowFactory { return DefaultRowFactory }

func (EmptyStructure) SelectionFactory(string) SelectionFactory { return DefaultSelectionFactory }

func (EmptyStructure) Scopes(string) []*Scope { return nil }

func (EmptyStructure) Scope(string, string) *Scope { return nil }
