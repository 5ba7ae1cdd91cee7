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
	"context"
	"fmt"
)

// Record is anything hydrated from a row: the plain *ActiveRow or a user type
// embedding it.
type Record interface {
	Row() *ActiveRow
}

// Collection is anything wrapping a selection: the plain *Selection or a
// user type embedding it.
type Collection interface {
	Rows() *Selection
}

// RowFactory turns a fetched row into the record type registered for its table.
type RowFactory func(row *ActiveRow) Record

// SelectionFactory turns a selection into the collection type registered for its table.
type SelectionFactory func(sel *Selection) Collection

// DefaultRowFactory returns the row itself.
func DefaultRowFactory(row *ActiveRow) Record { return row }

// DefaultSelectionFactory returns the selection itself.
func DefaultSelectionFactory(sel *Selection) Collection { return sel }

// Cast asserts the concrete record type.
func Cast[T Record](rec Record) (T, bool) {
	t, ok := rec.(T)
	return t, ok
}

// Wrap applies the registered selection factory and asserts its type.
func Wrap[T Collection](sel *Selection) (T, bool) {
	t, ok := sel.Wrap().(T)
	return t, ok
}

// FetchAllAs fetches every row of sel as T. It fails when the factory
// registered for the table does not produce T.
func FetchAllAs[T Record](ctx context.Context, sel *Selection) ([]T, error) {
	records, err := sel.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		t, ok := rec.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("table %s: record %T is not %T", sel.Name(), rec, zero)
		}
		out = append(out, t)
	}
	return out, nil
}

// Pair is one entry of an ordered key/value result.
type Pair struct {
	Key   interface{}
	Value interface{}
}

// Pairs keeps fetch order, unlike a Go map.
type Pairs []Pair

// Get returns the value stored under key. Keys compare by their printed form
// so an int64 id matches an int or string id.
func (p Pairs) Get(key interface{}) (interface{}, bool) {
	k := fmt.Sprint(key)
	for _, pair := range p {
		if fmt.Sprint(pair.Key) == k {
			return pair.Value, true
		}
	}
	return nil, false
}

func (p Pairs) Keys() []interface{} {
	keys := make([]interface{}, len(p))
	for i, pair := range p {
		keys[i] = pair.Key
	}
	return keys
}

func (p Pairs) Values() []interface{} {
	values := make([]interface{}, len(p))
	for i, pair := range p {
		values[i] = pair.Value
	}
	return values
}

// put appends or, for a key seen before, overwrites in place.
func (p Pairs) put(key, value interface{}) Pairs {
	k := fmt.Sprint(key)
	for i := range p {
		if fmt.Sprint(p[i].Key) == k {
			p[i].Value = value
			return p
		}
	}
	return append(p, Pair{Key: key, Value: value})
}

// CloneRecord copies rec and wraps the copy with the same row factory.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	return rec.Row().Clone().hydrate()
}
