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

// Package simplemapper maps repositories and table names to the row and
// selection types their rows are hydrated into.
package simplemapper

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/simplemapper/repository"
	"github.com/tomoncle/simplemapper/table"
)

// Mapper owns the structure shared by every mapped repository and keeps the
// repositories by their concrete type.
type Mapper struct {
	structure table.Registry

	mu           sync.RWMutex
	repositories map[reflect.Type]repository.Mappable
	byTable      map[string]repository.Mappable
}

// NewMapper uses a fresh table.BaseStructure when structure is nil.
func NewMapper(structure table.Registry) *Mapper {
	if structure == nil {
		structure = table.NewBaseStructure()
	}
	return &Mapper{
		structure:    structure,
		repositories: make(map[reflect.Type]repository.Mappable),
		byTable:      make(map[string]repository.Mappable),
	}
}

func (m *Mapper) Structure() table.Registry { return m.structure }

// MapRepository stores repo, hands it the structure, which registers its
// scopes, and registers the non-nil factories for its table. Mapping a
// second repository of the same type replaces the first.
func (m *Mapper) MapRepository(repo repository.Mappable, row table.RowFactory, selection table.SelectionFactory) error {
	if repo == nil {
		return fmt.Errorf("cannot map a nil repository")
	}
	if err := repo.SetStructure(m.structure); err != nil {
		return err
	}

	m.mu.Lock()
	m.repositories[reflect.TypeOf(repo)] = repo
	m.byTable[repo.TableName()] = repo
	m.mu.Unlock()

	m.MapTableName(repo.TableName(), row, selection)
	return nil
}

// MapTableName registers factories for a table without a repository.
func (m *Mapper) MapTableName(tableName string, row table.RowFactory, selection table.SelectionFactory) *Mapper {
	if row != nil {
		m.structure.RegisterRowFactory(tableName, row)
	}
	if selection != nil {
		m.structure.RegisterSelectionFactory(tableName, selection)
	}
	return m
}

// Repository returns the repository mapped with type t, or nil.
func (m *Mapper) Repository(t reflect.Type) repository.Mappable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repositories[t]
}

// RepositoryFor returns the repository last mapped for tableName, or nil.
func (m *Mapper) RepositoryFor(tableName string) repository.Mappable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byTable[tableName]
}

// RepositoryOf returns the repository mapped with type T.
func RepositoryOf[T repository.Mappable](m *Mapper) (T, bool) {
	repo, ok := m.Repository(reflect.TypeOf((*T)(nil)).Elem()).(T)
	return repo, ok
}
