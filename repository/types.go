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

package repository

import (
	"context"
	"errors"

	"github.com/tomoncle/simplemapper/behaviour"
	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/table"
	"github.com/tomoncle/simplemapper/types"
)

// ErrNoRecord is returned when a write is asked for a nil record.
var ErrNoRecord = errors.New("record is nil")

// Retry counts used by Ensure and Retry when they are given a negative count.
const (
	DefaultEnsureTimes = 1
	DefaultRetryTimes  = 3
)

// Mappable is what a Mapper needs from a repository. *Repository and every
// type embedding it satisfy it.
type Mappable interface {
	TableName() string
	SetStructure(structure table.Structure) error
	Structure() table.Structure
}

// Finder reads rows of the repository table.
type Finder interface {
	FindAll() table.Collection
	FindBy(conditions map[string]interface{}) table.Collection
	FetchPairs(ctx context.Context, key, value, order string, where map[string]interface{}) (table.Pairs, error)
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[table.Record], error)
}

// Writer changes rows, running the registered behaviours.
type Writer interface {
	Insert(ctx context.Context, data map[string]interface{}) (table.Record, error)
	Update(ctx context.Context, record table.Record, data map[string]interface{}) (table.Record, error)
	Delete(ctx context.Context, record table.Record) (bool, error)
	Upsert(ctx context.Context, data map[string]interface{}, conflictColumns, updateColumns []string) (table.Record, error)
}

// Transactor runs callbacks in transactions and around driver failures.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ensure(ctx context.Context, fn func(ctx context.Context) error, retryTimes int) error
	Retry(ctx context.Context, fn func(ctx context.Context) error, retryTimes int) error
}

// Option configures a Repository.
type Option func(r *Repository)

// WithSoftDelete makes Delete set column to true instead of deleting the row.
func WithSoftDelete(column string) Option {
	return func(r *Repository) { r.softDelete = column }
}

// WithBehaviour registers behaviours in order.
func WithBehaviour(behaviours ...behaviour.Behaviour) Option {
	return func(r *Repository) {
		for _, b := range behaviours {
			r.RegisterBehaviour(b)
		}
	}
}

// WithScopes declares the scopes registered when a structure is set.
func WithScopes(scopes ...*table.Scope) Option {
	return func(r *Repository) { r.scopes = append(r.scopes, scopes...) }
}

func WithLogger(logger database.Logger) Option {
	return func(r *Repository) {
		if logger == nil {
			logger = database.NopLogger{}
		}
		r.logger = logger
	}
}
