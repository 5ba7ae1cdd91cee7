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
	"strings"
	"unicode"
	"unicode/utf8"
)

const scopeMethodPrefix = "scope"

// ScopeFunc builds a condition map (see Selection.WhereMap) from the scope arguments.
type ScopeFunc func(args ...interface{}) map[string]interface{}

// Scope is a named, reusable where condition.
type Scope struct {
	name     string
	callback ScopeFunc
}

func NewScope(name string, callback ScopeFunc) *Scope {
	return &Scope{name: name, callback: callback}
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Callback() ScopeFunc { return s.callback }

// Apply evaluates the scope condition for args.
func (s *Scope) Apply(args ...interface{}) map[string]interface{} {
	return s.callback(args...)
}

func (s *Scope) valid() bool {
	return s != nil && s.name != "" && s.callback != nil
}

// ScopeName extracts the scope name from a "scopeXxx" method name,
// lowering the first rune: "scopePriceGreater" gives "priceGreater".
func ScopeName(method string) (string, bool) {
	rest, ok := strings.CutPrefix(method, scopeMethodPrefix)
	if !ok || rest == "" {
		return "", false
	}
	r, size := utf8.DecodeRuneInString(rest)
	return string(unicode.ToLower(r)) + rest[size:], true
}
