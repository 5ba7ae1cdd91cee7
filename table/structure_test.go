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
	"errors"
	"sync"
	"testing"
)

func TestBaseStructureDefaults(t *testing.T) {
	s := NewBaseStructure()
	row := &ActiveRow{}
	if rec := s.RowFactory("unknown")(row); rec != row {
		t.Fatal("unknown tables must keep plain rows")
	}
	sel := &Selection{}
	if c := s.SelectionFactory("unknown")(sel); c != sel {
		t.Fatal("unknown tables must keep plain selections")
	}
	if s.Scopes("unknown") != nil || s.Scope("unknown", "admin") != nil {
		t.Fatal("unknown tables have no scopes")
	}
}

func TestBaseStructureZeroValue(t *testing.T) {
	var s BaseStructure
	if s.Scope("products", "admin") != nil {
		t.Fatal("an empty structure has no scopes")
	}
	s.RegisterRowFactory("products", func(row *ActiveRow) Record { return &Product{row} })
	s.RegisterSelectionFactory("products", func(sel *Selection) Collection { return &Products{sel} })
	if err := s.RegisterScopes("products", adminScopes()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := s.RowFactory("products")(&ActiveRow{}).(*Product); !ok {
		t.Fatal("products rows must be *Product")
	}
	if _, ok := s.SelectionFactory("products")(&Selection{}).(*Products); !ok {
		t.Fatal("products selections must be *Products")
	}
	if len(s.Scopes("products")) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(s.Scopes("products")))
	}
}

func TestBaseStructureFactories(t *testing.T) {
	s := catalogueStructure()
	if _, ok := s.RowFactory("products")(&ActiveRow{}).(*Product); !ok {
		t.Fatal("products rows must be *Product")
	}
	if _, ok := s.SelectionFactory("products")(&Selection{}).(*Products); !ok {
		t.Fatal("products selections must be *Products")
	}
	// nil factories are ignored
	s.RegisterRowFactory("products", nil)
	if _, ok := s.RowFactory("products")(&ActiveRow{}).(*Product); !ok {
		t.Fatal("a nil factory must not replace the registered one")
	}
	if _, ok := s.SelectionFactory("product_types")(&Selection{}).(*Selection); !ok {
		t.Fatal("product_types has no selection factory")
	}
}

func TestRegisterScopes(t *testing.T) {
	s := NewBaseStructure()
	if err := s.RegisterScopes("products", adminScopes()); err != nil {
		t.Fatalf("register: %v", err)
	}
	replacement := NewScope("admin", func(...interface{}) map[string]interface{} {
		return map[string]interface{}{"is_hidden": false}
	})
	if err := s.RegisterScopes("products", []*Scope{replacement}); err != nil {
		t.Fatalf("register: %v", err)
	}

	scopes := s.Scopes("products")
	if len(scopes) != 2 || scopes[0].Name() != "admin" || scopes[1].Name() != "priceGreater" {
		t.Fatalf("unexpected scopes %v", scopes)
	}
	if s.Scope("products", "admin") != replacement {
		t.Fatal("a later scope must replace one with the same name")
	}
	if got := s.Scope("products", "priceGreater").Apply(30); got["products.price > ?"] != 30 {
		t.Fatalf("unexpected condition %v", got)
	}
}

func TestRegisterInvalidScopes(t *testing.T) {
	s := NewBaseStructure()
	invalid := [][]*Scope{
		{nil},
		{NewScope("", func(...interface{}) map[string]interface{} { return nil })},
		{NewScope("admin", nil)},
	}
	for i, scopes := range invalid {
		if err := s.RegisterScopes("products", scopes); !errors.Is(err, ErrInvalidScope) {
			t.Errorf("case %d: expected ErrInvalidScope, got %v", i, err)
		}
	}
	if len(s.Scopes("products")) != 0 {
		t.Fatal("a rejected batch must not register anything")
	}
}

func TestEmptyStructure(t *testing.T) {
	var s Structure = EmptyStructure{}
	if err := s.RegisterScopes("products", adminScopes()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Scope("products", "admin") != nil || len(s.Scopes("products")) != 0 {
		t.Fatal("empty structure must not keep scopes")
	}
	row := &ActiveRow{}
	if s.RowFactory("products")(row) != row {
		t.Fatal("empty structure must keep plain rows")
	}
}

func TestBaseStructureConcurrentUse(t *testing.T) {
	s := NewBaseStructure()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RegisterScopes("products", adminScopes())
			s.RegisterRowFactory("products", DefaultRowFactory)
			_ = s.Scopes("products")
			_ = s.RowFactory("products")
		}()
	}
	wg.Wait()
	if len(s.Scopes("products")) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(s.Scopes("products")))
	}
}

func TestScopeName(t *testing.T) {
	cases := []struct {
		method string
		name   string
		ok     bool
	}{
		{"scopeAdmin", "admin", true},
		{"scopePriceGreater", "priceGreater", true},
		{"scope", "", false},
		{"findAll", "", false},
	}
	for _, c := range cases {
		name, ok := ScopeName(c.method)
		if name != c.name || ok != c.ok {
			t.Errorf("ScopeName(%q) = %q, %v", c.method, name, ok)
		}
	}
}
