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
	"fmt"
	"sync"

	"github.com/tomoncle/simplemapper/behaviour"
	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/table"
	"github.com/tomoncle/simplemapper/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Repository is the service object of one table. Embed *Repository in a
// named type to add table specific finders:
//
//	type ProductRepository struct{ *repository.Repository }
type Repository struct {
	explorer   *table.Explorer
	tableName  string
	softDelete string
	scopes     []*table.Scope
	logger     database.Logger

	mu         sync.RWMutex
	structure  table.Structure
	behaviours []behaviour.Behaviour
	index      map[string]int
}

var (
	_ Mappable   = (*Repository)(nil)
	_ Finder     = (*Repository)(nil)
	_ Writer     = (*Repository)(nil)
	_ Transactor = (*Repository)(nil)
)

// New returns a repository of tableName. Rows stay plain until a structure
// is set, directly or through a Mapper.
func New(explorer *table.Explorer, tableName string, opts ...Option) *Repository {
	r := &Repository{
		explorer:  explorer,
		tableName: tableName,
		logger:    database.GetLogger(),
		structure: table.EmptyStructure{},
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) TableName() string { return r.tableName }

// PrefixColumn qualifies column with the table name.
func (r *Repository) PrefixColumn(column string) string {
	return r.tableName + "." + column
}

func (r *Repository) Explorer() *table.Explorer { return r.explorer }

func (r *Repository) SoftDeleteColumn() string { return r.softDelete }

func (r *Repository) Scopes() []*table.Scope {
	return append([]*table.Scope(nil), r.scopes...)
}

// SetStructure switches the structure used to hydrate rows and registers the
// repository scopes in it.
func (r *Repository) SetStructure(structure table.Structure) error {
	if structure == nil {
		structure = table.EmptyStructure{}
	}
	if len(r.scopes) > 0 {
		if err := structure.RegisterScopes(r.tableName, r.scopes); err != nil {
			return fmt.Errorf("register scopes of %s: %w", r.tableName, err)
		}
	}
	r.mu.Lock()
	r.structure = structure
	r.mu.Unlock()
	return nil
}

func (r *Repository) Structure() table.Structure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.structure
}

/*
 * Behaviours
 */

func behaviourName(b behaviour.Behaviour) string {
	return fmt.Sprintf("%T", b)
}

// RegisterBehaviour adds b. A behaviour of the same type replaces the
// registered one and keeps its position.
func (r *Repository) RegisterBehaviour(b behaviour.Behaviour) *Repository {
	if b == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := behaviourName(b)
	if i, ok := r.index[name]; ok {
		r.behaviours[i] = b
		return r
	}
	r.index[name] = len(r.behaviours)
	r.behaviours = append(r.behaviours, b)
	return r
}

// Behaviour looks a behaviour up by its type name, e.g. "*behaviour.Date".
func (r *Repository) Behaviour(name string) behaviour.Behaviour {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.index[name]; ok {
		return r.behaviours[i]
	}
	return nil
}

// BehaviourOf returns the first registered behaviour of type T.
func BehaviourOf[T behaviour.Behaviour](r *Repository) (T, bool) {
	for _, b := range r.behaviourList() {
		if t, ok := b.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

func (r *Repository) behaviourList() []behaviour.Behaviour {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]behaviour.Behaviour(nil), r.behaviours...)
}

/*
 * Finders
 */

// Table starts a plain selection over all rows.
func (r *Repository) Table() *table.Selection {
	return r.explorer.Table(r.tableName, r.Structure())
}

// FindAll selects all rows, wrapped by the registered selection factory.
func (r *Repository) FindAll() table.Collection {
	return r.Table().Wrap()
}

func (r *Repository) FindBy(conditions map[string]interface{}) table.Collection {
	return r.Table().WhereMap(conditions).Wrap()
}

// FetchPairs indexes the rows matching where by key; see Selection.FetchPairs.
func (r *Repository) FetchPairs(ctx context.Context, key, value, order string, where map[string]interface{}) (table.Pairs, error) {
	sel := r.Table().WhereMap(where)
	if order != "" {
		sel.Order(order)
	}
	return sel.FetchPairs(ctx, key, value)
}

// Scope selects the rows matching the named scope.
func (r *Repository) Scope(name string, args ...interface{}) (table.Collection, error) {
	sel, err := r.Table().Scope(name, args...)
	if err != nil {
		return nil, err
	}
	return sel.Wrap(), nil
}

// Invoke dispatches a "scopeXxx" method name to the scope "xxx".
func (r *Repository) Invoke(method string, args ...interface{}) (table.Collection, error) {
	name, ok := table.ScopeName(method)
	if !ok {
		return nil, fmt.Errorf("%w: %T.%s", table.ErrUndefinedMethod, r, method)
	}
	return r.Scope(name, args...)
}

// Page returns one page of rows matching the request filter, in the request order.
func (r *Repository) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[table.Record], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 10)
	}
	sel := r.Table()
	if filter := pageRequest.GetFilter(); !filter.IsEmpty() {
		if filter.Schema != "" {
			sel.Where(filter.Schema, filter.Args...)
		}
		sel.WhereMap(filter.Conditions)
	}

	pagination := types.NewDefaultPagination[table.Record](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := sel.Count(ctx, "*")
	if err != nil || total == 0 {
		return pagination, err
	}
	pagination.SetTotal(int(total))

	for _, order := range pageRequest.GetOrders() {
		sel.Order(order)
	}
	records, err := sel.Page(pageRequest.GetPage(), pageRequest.GetPageSize()).FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Items = records
	return pagination, nil
}

// Chunk calls fn for each page of limit rows of sel. The selection is
// re-paged in place between the calls.
func (r *Repository) Chunk(ctx context.Context, sel *table.Selection, limit int, fn func(ctx context.Context, page *table.Selection) error) error {
	pages, err := sel.Pages(ctx, limit)
	if err != nil {
		return err
	}
	for i := 1; i <= pages; i++ {
		if err := fn(ctx, sel.Page(i, limit)); err != nil {
			return err
		}
	}
	return nil
}

/*
 * Writers
 */

// Insert runs the BeforeInsert chain, inserts the resulting data and runs
// the AfterInsert chain, all in one transaction. The record is nil when the
// inserted row cannot be read back.
func (r *Repository) Insert(ctx context.Context, data map[string]interface{}) (table.Record, error) {
	var record table.Record
	err := r.Transaction(ctx, func(ctx context.Context) error {
		behaviours := r.behaviourList()
		var err error
		for _, b := range behaviours {
			if data, err = b.BeforeInsert(ctx, data); err != nil {
				return fmt.Errorf("%s before insert: %w", behaviourName(b), err)
			}
		}

		record, err = r.Table().Insert(ctx, data)
		if err != nil || record == nil {
			return err
		}

		for _, b := range behaviours {
			if err := b.AfterInsert(ctx, record, data); err != nil {
				return fmt.Errorf("%s after insert: %w", behaviourName(b), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Record inserted", "table", r.tableName, "primary", signature(record))
	return record, nil
}

// Update writes data to record and reloads it. It returns record, or nil
// when no row changed.
func (r *Repository) Update(ctx context.Context, record table.Record, data map[string]interface{}) (table.Record, error) {
	if record == nil {
		return nil, ErrNoRecord
	}
	var changed bool
	err := r.Transaction(ctx, func(ctx context.Context) error {
		old := table.CloneRecord(record)
		behaviours := r.behaviourList()
		var err error
		for _, b := range behaviours {
			if data, err = b.BeforeUpdate(ctx, record, data); err != nil {
				return fmt.Errorf("%s before update: %w", behaviourName(b), err)
			}
		}

		if changed, err = record.Row().Update(ctx, data); err != nil {
			return err
		}

		for _, b := range behaviours {
			if err := b.AfterUpdate(ctx, old, record, data); err != nil {
				return fmt.Errorf("%s after update: %w", behaviourName(b), err)
			}
		}
		return nil
	})
	if err != nil || !changed {
		return nil, err
	}
	r.logger.Debug("Record updated", "table", r.tableName, "primary", signature(record))
	return record, nil
}

// Delete deletes record, or marks it deleted when the repository has a soft
// delete column. It reports whether a row was affected.
func (r *Repository) Delete(ctx context.Context, record table.Record) (bool, error) {
	if record == nil {
		return false, ErrNoRecord
	}
	soft := r.softDelete != ""
	var affected bool
	err := r.Transaction(ctx, func(ctx context.Context) error {
		old := table.CloneRecord(record)
		behaviours := r.behaviourList()
		for _, b := range behaviours {
			if err := b.BeforeDelete(ctx, record, soft); err != nil {
				return fmt.Errorf("%s before delete: %w", behaviourName(b), err)
			}
		}

		var err error
		if soft {
			affected, err = record.Row().Update(ctx, map[string]interface{}{r.softDelete: true})
		} else {
			var n int64
			n, err = record.Row().Delete(ctx)
			affected = n > 0
		}
		if err != nil {
			return err
		}

		for _, b := range behaviours {
			if err := b.AfterDelete(ctx, old, soft); err != nil {
				return fmt.Errorf("%s after delete: %w", behaviourName(b), err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	r.logger.Debug("Record deleted", "table", r.tableName, "primary", signature(record), "soft", soft)
	return affected, nil
}

// Upsert inserts data or, when a row with the same conflictColumns values
// exists, updates its updateColumns (every other column of data when empty).
// conflictColumns default to the primary key. Behaviours are not run.
func (r *Repository) Upsert(ctx context.Context, data map[string]interface{}, conflictColumns, updateColumns []string) (table.Record, error) {
	if len(conflictColumns) == 0 {
		conflictColumns = []string{r.Table().Primary()}
	}
	where := make(map[string]interface{}, len(conflictColumns))
	for _, c := range conflictColumns {
		v, ok := data[c]
		if !ok {
			return nil, fmt.Errorf("upsert into %s: conflict column %s missing from data", r.tableName, c)
		}
		where[c] = v
	}
	if len(updateColumns) == 0 {
		for k := range data {
			if _, ok := where[k]; !ok {
				updateColumns = append(updateColumns, k)
			}
		}
	}

	var record table.Record
	err := r.Transaction(ctx, func(ctx context.Context) error {
		idb, err := r.explorer.Conn(ctx)
		if err != nil {
			return err
		}
		features := idb.Dialect().Features()
		switch {
		case features.Has(feature.InsertOnConflict):
			err = r.upsertOnConflict(ctx, idb, data, conflictColumns, updateColumns)
		case features.Has(feature.InsertOnDuplicateKey):
			err = r.upsertOnDuplicateKey(ctx, idb, data, updateColumns)
		default:
			err = r.upsertFallback(ctx, data, where)
		}
		if err != nil {
			return fmt.Errorf("upsert into %s: %w", r.tableName, err)
		}
		record, err = r.Table().WhereMap(where).Fetch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *Repository) upsertOnConflict(ctx context.Context, idb bun.IDB, data map[string]interface{}, conflictColumns, updateColumns []string) error {
	values := copyData(data)
	q := idb.NewInsert().Model(&values).TableExpr("?", bun.Ident(r.tableName))
	if len(updateColumns) == 0 {
		q = q.On("CONFLICT (?) DO NOTHING", bun.In(idents(conflictColumns)))
	} else {
		q = q.On("CONFLICT (?) DO UPDATE", bun.In(idents(conflictColumns)))
		for _, c := range updateColumns {
			q = q.Set("? = EXCLUDED.?", bun.Ident(c), bun.Ident(c))
		}
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *Repository) upsertOnDuplicateKey(ctx context.Context, idb bun.IDB, data map[string]interface{}, updateColumns []string) error {
	values := copyData(data)
	q := idb.NewInsert().Model(&values).TableExpr("?", bun.Ident(r.tableName))
	if len(updateColumns) == 0 {
		q = q.Ignore()
	} else {
		q = q.On("DUPLICATE KEY UPDATE")
		for _, c := range updateColumns {
			q = q.Set("? = VALUES(?)", bun.Ident(c), bun.Ident(c))
		}
	}
	_, err := q.Exec(ctx)
	return err
}

// upsertFallback updates first and inserts when nothing matched.
func (r *Repository) upsertFallback(ctx context.Context, data, where map[string]interface{}) error {
	n, err := r.Table().WhereMap(where).Update(ctx, data)
	if err != nil || n > 0 {
		return err
	}
	_, err = r.Table().Insert(ctx, data)
	return err
}

/*
 * Transactions
 */

// Transaction runs fn in a transaction. When ctx already carries one, fn
// joins it; otherwise the transaction is committed when fn succeeds and
// rolled back when it fails or panics.
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	nested := r.explorer.InTransaction(ctx)
	err := r.explorer.Transaction(ctx, fn)
	if err != nil && !nested {
		r.logger.Warn("Transaction rolled back", "table", r.tableName, "error", err)
	}
	return err
}

// Ensure runs fn and, when it fails with a driver error, reconnects and
// runs it again, at most retryTimes more times. A negative retryTimes means
// DefaultEnsureTimes.
func (r *Repository) Ensure(ctx context.Context, fn func(ctx context.Context) error, retryTimes int) error {
	return r.repeat(ctx, fn, retryTimes, true)
}

// Retry runs fn again, at most retryTimes more times, while it fails with a
// driver error. A negative retryTimes means DefaultRetryTimes.
func (r *Repository) Retry(ctx context.Context, fn func(ctx context.Context) error, retryTimes int) error {
	return r.repeat(ctx, fn, retryTimes, false)
}

func (r *Repository) repeat(ctx context.Context, fn func(ctx context.Context) error, retryTimes int, reconnect bool) error {
	if retryTimes < 0 {
		retryTimes = DefaultRetryTimes
		if reconnect {
			retryTimes = DefaultEnsureTimes
		}
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= retryTimes || !database.IsDriverError(err) {
			return err
		}
		r.logger.Warn("Database call failed, retrying",
			"table", r.tableName, "attempt", attempt+1, "max_retries", retryTimes, "error", err)
		if !reconnect {
			continue
		}
		if rerr := r.explorer.Reconnect(ctx); rerr != nil {
			r.logger.Error("Database reconnect failed", "table", r.tableName, "error", rerr)
			return errors.Join(err, fmt.Errorf("reconnect failed: %w", rerr))
		}
	}
}

func signature(record table.Record) string {
	if record == nil {
		return ""
	}
	return record.Row().Signature()
}

func idents(columns []string) []bun.Ident {
	out := make([]bun.Ident, len(columns))
	for i, c := range columns {
		out[i] = bun.Ident(c)
	}
	return out
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
