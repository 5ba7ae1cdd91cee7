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
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/uptrace/bun"
)

type expr struct {
	query string
	args  []interface{}
}

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

func applyWhere[Q whereQuery[Q]](q Q, conds []expr) Q {
	for _, c := range conds {
		q = q.Where(c.query, c.args...)
	}
	return q
}

func isList(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func listLen(v interface{}) int {
	return reflect.ValueOf(v).Len()
}

func containsPlaceholder(query string) bool {
	return strings.Contains(query, "?")
}

func endsWithOperator(key string) bool {
	if key == "" {
		return false
	}
	if strings.ContainsAny(key[len(key)-1:], "<>=!") {
		return true
	}
	return strings.Contains(strings.TrimSpace(key), " ")
}

// columnExpr quotes plain and dotted column names and passes any other
// key, such as "LOWER(title)", through as a raw expression.
func columnExpr(key string) interface{} {
	if key == "" {
		return bun.Safe(key)
	}
	for _, r := range key {
		if r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return bun.Safe(key)
		}
	}
	return bun.Ident(key)
}

// conditionFor translates one condition map entry:
//
//	"col": v        col = v, col IS NULL for nil, col IN (...) for a slice
//	"LOWER(col)": v the same, with the key used as an expression
//	"col > ?": v    the key is the expression
//	"col >=": v     the key is the expression, " ?" is appended
func conditionFor(key string, value interface{}) expr {
	key = strings.TrimSpace(key)
	list := isList(value)
	if list && listLen(value) == 0 {
		// an empty IN list matches nothing, an empty NOT IN list everything
		if strings.Contains(strings.ToUpper(key), "NOT IN") {
			return expr{query: "1 = 1"}
		}
		return expr{query: "1 = 0"}
	}
	arg := value
	if list {
		arg = bun.In(value)
	}

	switch {
	case containsPlaceholder(key):
		return expr{query: key, args: []interface{}{arg}}
	case endsWithOperator(key):
		if strings.HasSuffix(strings.ToUpper(key), " IN") {
			return expr{query: key + " (?)", args: []interface{}{arg}}
		}
		return expr{query: key + " ?", args: []interface{}{arg}}
	case value == nil:
		return expr{query: "? IS NULL", args: []interface{}{columnExpr(key)}}
	case list:
		return expr{query: "? IN (?)", args: []interface{}{columnExpr(key), arg}}
	default:
		return expr{query: "? = ?", args: []interface{}{columnExpr(key), arg}}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// conditionsFromMap turns a condition map into AND-ed expressions, in key order.
func conditionsFromMap(m map[string]interface{}) []expr {
	out := make([]expr, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, conditionFor(k, m[k]))
	}
	return out
}

// orCondition joins a condition map into one OR-ed expression.
func orCondition(m map[string]interface{}) (expr, bool) {
	conds := conditionsFromMap(m)
	if len(conds) == 0 {
		return expr{}, false
	}
	parts := make([]string, len(conds))
	var args []interface{}
	for i, c := range conds {
		parts[i] = "(" + c.query + ")"
		args = append(args, c.args...)
	}
	return expr{query: strings.Join(parts, " OR "), args: args}, true
}
