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
	"math"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

type joinExpr struct {
	expr
	on []expr
}

// Selection is a chainable query over one table. It executes lazily on the
// first fetch and keeps its result until it is modified. A Selection is not
// safe for concurrent use; Clone it instead.
type Selection struct {
	explorer  *Explorer
	structure Structure
	name      string

	columns []expr
	conds   []expr
	joins   []joinExpr
	orders  []expr
	groups  []expr
	having  []expr
	limit   int
	offset  int

	rows   []Record
	loaded bool
	cursor int
}

func newSelection(e *Explorer, structure Structure, name string) *Selection {
	if structure == nil {
		structure = EmptyStructure{}
	}
	return &Selection{explorer: e, structure: structure, name: name}
}

// Rows implements Collection.
func (s *Selection) Rows() *Selection { return s }

// Wrap hydrates the selection through the factory registered for its table.
func (s *Selection) Wrap() Collection {
	return s.structure.SelectionFactory(s.name)(s)
}

func (s *Selection) Name() string { return s.name }

func (s *Selection) Explorer() *Explorer { return s.explorer }

func (s *Selection) Structure() Structure { return s.structure }

// Primary returns the primary key column of the table.
func (s *Selection) Primary() string {
	return s.explorer.Conventions().Primary(s.name)
}

// Clone copies the query but not the fetched rows.
func (s *Selection) Clone() *Selection {
	c := &Selection{
		explorer:  s.explorer,
		structure: s.structure,
		name:      s.name,
		columns:   append([]expr(nil), s.columns...),
		conds:     append([]expr(nil), s.conds...),
		orders:    append([]expr(nil), s.orders...),
		groups:    append([]expr(nil), s.groups...),
		having:    append([]expr(nil), s.having...),
		limit:     s.limit,
		offset:    s.offset,
	}
	for _, j := range s.joins {
		c.joins = append(c.joins, joinExpr{expr: j.expr, on: append([]expr(nil), j.on...)})
	}
	return c
}

func (s *Selection) reset() {
	s.rows = nil
	s.loaded = false
	s.cursor = 0
}

/*
 * Build
 */

// Select replaces the default "table.*" column list; calls accumulate.
func (s *Selection) Select(columns string, args ...interface{}) *Selection {
	s.reset()
	s.columns = append(s.columns, expr{query: columns, args: args})
	return s
}

// Where adds a condition, AND-ed with the others. A condition without a
// placeholder and exactly one argument is treated as a condition map entry,
// so Where("price >", 10) and Where("id", []int{1, 2}) both work. Slice
// arguments of an explicit expression are expanded: "id IN (?)".
func (s *Selection) Where(condition string, args ...interface{}) *Selection {
	s.reset()
	switch {
	case len(args) == 1 && !containsPlaceholder(condition):
		s.conds = append(s.conds, conditionFor(condition, args[0]))
	default:
		expanded := make([]interface{}, len(args))
		for i, arg := range args {
			if isList(arg) {
				arg = bun.In(arg)
			}
			expanded[i] = arg
		}
		s.conds = append(s.conds, expr{query: condition, args: expanded})
	}
	return s
}

// WhereMap adds every entry of a condition map.
func (s *Selection) WhereMap(conditions map[string]interface{}) *Selection {
	s.reset()
	s.conds = append(s.conds, conditionsFromMap(conditions)...)
	return s
}

// WherePrimary filters by primary key; key may be a single value, a slice or
// a condition map.
func (s *Selection) WherePrimary(key interface{}) *Selection {
	if m, ok := key.(map[string]interface{}); ok {
		return s.WhereMap(m)
	}
	s.reset()
	s.conds = append(s.conds, conditionFor(s.name+"."+s.Primary(), key))
	return s
}

// WhereOr adds the entries of a condition map joined by OR.
func (s *Selection) WhereOr(conditions map[string]interface{}) *Selection {
	s.reset()
	if c, ok := orCondition(conditions); ok {
		s.conds = append(s.conds, c)
	}
	return s
}

// Join adds a join clause, e.g. Join("JOIN categories AS c ON c.id = products.category_id").
func (s *Selection) Join(join string, args ...interface{}) *Selection {
	s.reset()
	s.joins = append(s.joins, joinExpr{expr: expr{query: join, args: args}})
	return s
}

// JoinOn adds a condition to the last join.
func (s *Selection) JoinOn(condition string, args ...interface{}) *Selection {
	if len(s.joins) == 0 {
		return s
	}
	s.reset()
	last := &s.joins[len(s.joins)-1]
	last.on = append(last.on, expr{query: condition, args: args})
	return s
}

func (s *Selection) Order(order string, args ...interface{}) *Selection {
	s.reset()
	s.orders = append(s.orders, expr{query: order, args: args})
	return s
}

// Limit sets the limit and offset; zero disables each.
func (s *Selection) Limit(limit, offset int) *Selection {
	s.reset()
	s.limit = limit
	s.offset = offset
	return s
}

// Page limits the selection to one page, counted from 1.
func (s *Selection) Page(page, itemsPerPage int) *Selection {
	if page < 1 {
		page = 1
	}
	return s.Limit(itemsPerPage, (page-1)*itemsPerPage)
}

func (s *Selection) Group(columns string, args ...interface{}) *Selection {
	s.reset()
	s.groups = append(s.groups, expr{query: columns, args: args})
	return s
}

func (s *Selection) Having(having string, args ...interface{}) *Selection {
	s.reset()
	s.having = append(s.having, expr{query: having, args: args})
	return s
}

// Scope applies the condition of the named scope registered for the table.
func (s *Selection) Scope(name string, args ...interface{}) (*Selection, error) {
	scope := s.structure.Scope(s.name, name)
	if scope == nil {
		return nil, fmt.Errorf("%w: %s for table %s", ErrScopeNotDefined, name, s.name)
	}
	return s.WhereMap(scope.Apply(args...)), nil
}

// Invoke dispatches a "scopeXxx" method name to the scope "xxx".
func (s *Selection) Invoke(method string, args ...interface{}) (*Selection, error) {
	name, ok := ScopeName(method)
	if !ok {
		return nil, fmt.Errorf("%w: Selection(%s).%s", ErrUndefinedMethod, s.name, method)
	}
	return s.Scope(name, args...)
}

/*
 * Query
 */

func (s *Selection) from(q *bun.SelectQuery) *bun.SelectQuery {
	q = q.TableExpr("?", bun.Ident(s.name))
	for _, j := range s.joins {
		q = q.Join(j.query, j.args...)
		for _, on := range j.on {
			q = q.JoinOn(on.query, on.args...)
		}
	}
	return applyWhere(q, s.conds)
}

func (s *Selection) selectQuery(idb bun.IDB) *bun.SelectQuery {
	q := s.from(idb.NewSelect())
	if len(s.columns) == 0 {
		q = q.ColumnExpr("?.*", bun.Ident(s.name))
	}
	for _, c := range s.columns {
		q = q.ColumnExpr(c.query, c.args...)
	}
	for _, g := range s.groups {
		q = q.GroupExpr(g.query, g.args...)
	}
	for _, h := range s.having {
		q = q.Having(h.query, h.args...)
	}
	for _, o := range s.orders {
		q = q.OrderExpr(o.query, o.args...)
	}
	if s.limit > 0 {
		q = q.Limit(s.limit)
	}
	if s.offset > 0 {
		q = q.Offset(s.offset)
	}
	return q
}

// String renders the SELECT statement without executing it.
func (s *Selection) String() string {
	db := s.explorer.DB()
	if db == nil {
		return ""
	}
	return s.selectQuery(db).String()
}

func (s *Selection) hydrate(data map[string]interface{}) Record {
	return hydrate(s.explorer, s.structure, s.name, data)
}

func (s *Selection) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return err
	}
	var data []map[string]interface{}
	if err := s.selectQuery(idb).Scan(ctx, &data); err != nil {
		return fmt.Errorf("select from %s: %w", s.name, err)
	}
	s.rows = make([]Record, 0, len(data))
	for _, m := range data {
		s.rows = append(s.rows, s.hydrate(normalize(m)))
	}
	s.loaded = true
	s.cursor = 0
	return nil
}

/*
 * Fetch
 */

// Get returns the row with the given primary key, or nil when there is none.
// The receiver's conditions still apply.
func (s *Selection) Get(ctx context.Context, key interface{}) (Record, error) {
	sel := s.Clone().WherePrimary(key).Limit(1, 0)
	records, err := sel.FetchAll(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Fetch returns the next row, or nil after the last one.
func (s *Selection) Fetch(ctx context.Context) (Record, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	if s.cursor >= len(s.rows) {
		return nil, nil
	}
	rec := s.rows[s.cursor]
	s.cursor++
	return rec, nil
}

// Rewind moves the Fetch cursor back to the first row.
func (s *Selection) Rewind() {
	s.cursor = 0
}

func (s *Selection) FetchAll(ctx context.Context) ([]Record, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return append([]Record(nil), s.rows...), nil
}

// Each calls fn for every row and stops at the first error.
func (s *Selection) Each(ctx context.Context, fn func(rec Record) error) error {
	records, err := s.FetchAll(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// FetchPairs indexes the rows by the key column (the primary key when
// empty). Values are the value column, or the records when value is empty.
func (s *Selection) FetchPairs(ctx context.Context, key, value string) (Pairs, error) {
	if key == "" {
		key = s.Primary()
	}
	records, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make(Pairs, 0, len(records))
	for _, rec := range records {
		row := rec.Row()
		if value == "" {
			pairs = pairs.put(row.Get(key), rec)
			continue
		}
		pairs = pairs.put(row.Get(key), row.Get(value))
	}
	return pairs, nil
}

// FetchAssoc groups the rows by the value of column, keeping fetch order.
// Every value of the result is a []Record.
func (s *Selection) FetchAssoc(ctx context.Context, column string) (Pairs, error) {
	records, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	var pairs Pairs
	for _, rec := range records {
		key := rec.Row().Get(column)
		group, _ := pairs.Get(key)
		list, _ := group.([]Record)
		pairs = pairs.put(key, append(list, rec))
	}
	return pairs, nil
}

// FetchField returns column of the first row (the primary key when column
// is empty), or nil when there are no rows.
func (s *Selection) FetchField(ctx context.Context, column string) (interface{}, error) {
	if column == "" {
		column = s.Primary()
	}
	rec, err := s.first(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Row().Get(column), nil
}

func (s *Selection) first(ctx context.Context) (Record, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	if len(s.rows) == 0 {
		return nil, nil
	}
	return s.rows[0], nil
}

/*
 * Aggregation
 */

// Aggregation evaluates an aggregate function, e.g. "SUM(price)", over the
// rows matching the conditions. Order, limit and grouping are ignored.
// NULL results, such as SUM over no rows, give 0.
func (s *Selection) Aggregation(ctx context.Context, function string) (float64, error) {
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return 0, err
	}
	result := make(map[string]interface{})
	q := s.from(idb.NewSelect()).ColumnExpr(function+" AS ?", bun.Ident("aggregate"))
	if err := q.Scan(ctx, &result); err != nil {
		return 0, fmt.Errorf("aggregate %s on %s: %w", function, s.name, err)
	}
	v := normalize(result)["aggregate"]
	if v == nil {
		return 0, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("aggregate %s on %s: %w", function, s.name, err)
	}
	return f, nil
}

// Count counts the fetched rows when column is empty, otherwise it runs
// COUNT(column) over the matching rows.
func (s *Selection) Count(ctx context.Context, column string) (int64, error) {
	if column == "" {
		if err := s.load(ctx); err != nil {
			return 0, err
		}
		return int64(len(s.rows)), nil
	}
	n, err := s.Aggregation(ctx, "COUNT("+column+")")
	return int64(n), err
}

func (s *Selection) Min(ctx context.Context, column string) (float64, error) {
	return s.Aggregation(ctx, "MIN("+column+")")
}

func (s *Selection) Max(ctx context.Context, column string) (float64, error) {
	return s.Aggregation(ctx, "MAX("+column+")")
}

func (s *Selection) Sum(ctx context.Context, column string) (float64, error) {
	return s.Aggregation(ctx, "SUM("+column+")")
}

// Pages returns how many pages of itemsPerPage the matching rows fill.
func (s *Selection) Pages(ctx context.Context, itemsPerPage int) (int, error) {
	if itemsPerPage <= 0 {
		return 0, fmt.Errorf("items per page must be positive, got %d", itemsPerPage)
	}
	count, err := s.Count(ctx, "*")
	if err != nil {
		return 0, err
	}
	return int(math.Ceil(float64(count) / float64(itemsPerPage))), nil
}

/*
 * Manipulation
 */

// Insert inserts one row and returns it as stored. The result is nil when
// the dialect cannot return the row and no primary key value is known.
func (s *Selection) Insert(ctx context.Context, data map[string]interface{}) (Record, error) {
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(data))
	for k, v := range data {
		values[k] = v
	}
	q := idb.NewInsert().Model(&values).TableExpr("?", bun.Ident(s.name))

	if idb.Dialect().Features().Has(feature.InsertReturning) {
		row := make(map[string]interface{})
		if _, err := q.Returning("*").Exec(ctx, &row); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", s.name, err)
		}
		s.reset()
		return s.hydrate(normalize(row)), nil
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", s.name, err)
	}
	s.reset()

	key, ok := data[s.Primary()]
	if !ok || key == nil {
		id, err := res.LastInsertId()
		if err != nil || id == 0 {
			return nil, nil
		}
		key = id
	}
	return newSelection(s.explorer, s.structure, s.name).Get(ctx, key)
}

// InsertMany inserts all rows in one statement and returns how many were inserted.
func (s *Selection) InsertMany(ctx context.Context, rows []map[string]interface{}) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := idb.NewInsert().Model(&rows).TableExpr("?", bun.Ident(s.name)).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", s.name, err)
	}
	s.reset()
	return res.RowsAffected()
}

// Update updates every row matching the conditions and returns the number of
// affected rows.
func (s *Selection) Update(ctx context.Context, data map[string]interface{}) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return 0, err
	}
	values := make(map[string]interface{}, len(data))
	for k, v := range data {
		values[k] = v
	}
	q := idb.NewUpdate().Model(&values).TableExpr("?", bun.Ident(s.name))
	if len(s.conds) == 0 {
		q = q.Where("1 = 1")
	}
	res, err := applyWhere(q, s.conds).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", s.name, err)
	}
	s.reset()
	return res.RowsAffected()
}

// Delete deletes every row matching the conditions.
func (s *Selection) Delete(ctx context.Context) (int64, error) {
	idb, err := s.explorer.Conn(ctx)
	if err != nil {
		return 0, err
	}
	q := idb.NewDelete().TableExpr("?", bun.Ident(s.name))
	if len(s.conds) == 0 {
		q = q.Where("1 = 1")
	}
	res, err := applyWhere(q, s.conds).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", s.name, err)
	}
	s.reset()
	return res.RowsAffected()
}
