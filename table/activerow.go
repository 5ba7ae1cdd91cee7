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
	"sort"
	"time"

	"github.com/spf13/cast"
)

// ActiveRow is one fetched row. Column values are read-only; changes go
// through Update, which writes them and reloads the row.
type ActiveRow struct {
	explorer    *Explorer
	structure   Structure
	table       string
	data        map[string]interface{}
	self        Record
	referencing Record
}

func newActiveRow(e *Explorer, structure Structure, table string, data map[string]interface{}) *ActiveRow {
	if structure == nil {
		structure = EmptyStructure{}
	}
	return &ActiveRow{explorer: e, structure: structure, table: table, data: data}
}

// hydrate wraps data with the row factory registered for table.
func hydrate(e *Explorer, structure Structure, table string, data map[string]interface{}) Record {
	return newActiveRow(e, structure, table, data).hydrate()
}

func (r *ActiveRow) hydrate() Record {
	rec := r.structure.RowFactory(r.table)(r)
	if rec == nil {
		rec = r
	}
	r.self = rec
	return rec
}

// Row implements Record.
func (r *ActiveRow) Row() *ActiveRow { return r }

// Record returns the factory-built record wrapping r, or r itself.
func (r *ActiveRow) Record() Record {
	if r.self != nil {
		return r.self
	}
	return r
}

func (r *ActiveRow) Table() string { return r.table }

func (r *ActiveRow) Explorer() *Explorer { return r.explorer }

func (r *ActiveRow) Structure() Structure { return r.structure }

// Selection starts a new selection over the row's table.
func (r *ActiveRow) Selection() *Selection {
	return newSelection(r.explorer, r.structure, r.table)
}

func (r *ActiveRow) PrimaryColumn() string {
	return r.explorer.Conventions().Primary(r.table)
}

// Primary returns the primary key value, nil when the row does not carry it.
func (r *ActiveRow) Primary() interface{} {
	return r.data[r.PrimaryColumn()]
}

// Signature is the primary key value as a string.
func (r *ActiveRow) Signature() string {
	return cast.ToString(r.Primary())
}

func (r *ActiveRow) String() string { return r.Signature() }

/*
 * Columns
 */

func (r *ActiveRow) Get(column string) interface{} {
	return r.data[column]
}

// Lookup reports whether the row has column, like a map index.
func (r *ActiveRow) Lookup(column string) (interface{}, bool) {
	v, ok := r.data[column]
	return v, ok
}

func (r *ActiveRow) Has(column string) bool {
	_, ok := r.data[column]
	return ok
}

// Columns returns the column names, sorted.
func (r *ActiveRow) Columns() []string {
	columns := make([]string, 0, len(r.data))
	for k := range r.data {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// ToMap returns a copy of the row data.
func (r *ActiveRow) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r.data))
	for k, v := range r.data {
		m[k] = v
	}
	return m
}

// GetString and the other typed getters return the zero value for missing or
// unconvertible columns.
func (r *ActiveRow) GetString(column string) string {
	return cast.ToString(r.data[column])
}

func (r *ActiveRow) GetInt64(column string) int64 {
	return cast.ToInt64(r.data[column])
}

func (r *ActiveRow) GetFloat64(column string) float64 {
	return cast.ToFloat64(r.data[column])
}

// GetBool treats numeric columns as true when non-zero, as SQLite and MySQL
// store booleans as integers.
func (r *ActiveRow) GetBool(column string) bool {
	v := r.data[column]
	if b, err := cast.ToBoolE(v); err == nil {
		return b
	}
	return cast.ToInt64(v) != 0
}

// GetTime parses time columns stored as text, as SQLite does.
func (r *ActiveRow) GetTime(column string) time.Time {
	return cast.ToTime(r.data[column])
}

/*
 * Relations
 */

// ReferencingRecord is the record whose Ref produced this one.
func (r *ActiveRow) ReferencingRecord() Record { return r.referencing }

func (r *ActiveRow) SetReferencingRecord(rec Record) { r.referencing = rec }

// Ref returns the row referenced by this one. key names the relation,
// throughColumn overrides the foreign key column found by the conventions.
// The result is nil when the foreign key is NULL or points nowhere.
func (r *ActiveRow) Ref(ctx context.Context, key, throughColumn string) (Record, error) {
	refTable, column := r.explorer.Conventions().BelongsTo(r.table, key)
	if throughColumn != "" {
		column = throughColumn
	}
	value := r.data[column]
	if value == nil {
		return nil, nil
	}
	rec, err := newSelection(r.explorer, r.structure, refTable).Get(ctx, value)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.Row().SetReferencingRecord(r.Record())
	return rec, nil
}

// Related selects the rows of another table referencing this one. The
// result is a plain *Selection so that it can be refined further; call Wrap,
// or use RelatedCollection, for the type registered for the table. A row
// without primary key value has no related rows.
func (r *ActiveRow) Related(key, throughColumn string) *Selection {
	relTable, column := r.explorer.Conventions().HasMany(r.table, key)
	if throughColumn != "" {
		column = throughColumn
	}
	sel := newSelection(r.explorer, r.structure, relTable)
	if primary := r.Primary(); primary != nil {
		sel.conds = append(sel.conds, conditionFor(relTable+"."+column, primary))
	} else {
		sel.conds = append(sel.conds, expr{query: "1 = 0"})
	}
	return sel
}

// RelatedCollection is Related wrapped by the selection factory of the
// related table.
func (r *ActiveRow) RelatedCollection(key, throughColumn string) Collection {
	return r.Related(key, throughColumn).Wrap()
}

// MMRelated follows ref from every row of sel, typically a junction table
// selection from Related, and indexes the referenced records by their
// refPrimary column ("id" when empty).
func (r *ActiveRow) MMRelated(ctx context.Context, sel *Selection, ref, refPrimary string) (Pairs, error) {
	if refPrimary == "" {
		refPrimary = "id"
	}
	records, err := sel.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	var pairs Pairs
	for _, rec := range records {
		target, err := rec.Row().Ref(ctx, ref, "")
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		pairs = pairs.put(target.Row().Get(refPrimary), target)
	}
	return pairs, nil
}

/*
 * Manipulation
 */

func (r *ActiveRow) wherePrimary() (*Selection, error) {
	key := r.Primary()
	if key == nil {
		return nil, fmt.Errorf("table %s: %w", r.table, ErrNoPrimary)
	}
	return r.Selection().WherePrimary(key), nil
}

// Update writes data to this row and reloads it. It reports whether a row
// was changed.
func (r *ActiveRow) Update(ctx context.Context, data map[string]interface{}) (bool, error) {
	sel, err := r.wherePrimary()
	if err != nil {
		return false, err
	}
	n, err := sel.Update(ctx, data)
	if err != nil || n == 0 {
		return false, err
	}

	key := r.Primary()
	if v, ok := data[r.PrimaryColumn()]; ok {
		key = v
	}
	if err := r.reload(ctx, key); err != nil {
		return true, err
	}
	return true, nil
}

func (r *ActiveRow) Delete(ctx context.Context) (int64, error) {
	sel, err := r.wherePrimary()
	if err != nil {
		return 0, err
	}
	return sel.Delete(ctx)
}

// Refresh reloads the row from the database.
func (r *ActiveRow) Refresh(ctx context.Context) error {
	key := r.Primary()
	if key == nil {
		return fmt.Errorf("table %s: %w", r.table, ErrNoPrimary)
	}
	return r.reload(ctx, key)
}

func (r *ActiveRow) reload(ctx context.Context, key interface{}) error {
	rec, err := r.Selection().Get(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("table %s, key %v: %w", r.table, key, ErrRowNotFound)
	}
	r.data = rec.Row().data
	return nil
}

// Clone copies the row data; the copy is not wrapped by the row factory.
func (r *ActiveRow) Clone() *ActiveRow {
	c := newActiveRow(r.explorer, r.structure, r.table, r.ToMap())
	c.referencing = r.referencing
	return c
}
