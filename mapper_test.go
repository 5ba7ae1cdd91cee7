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

package simplemapper

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/internal/testdb"
	"github.com/tomoncle/simplemapper/repository"
	"github.com/tomoncle/simplemapper/table"
)

type Product struct{ *table.ActiveRow }

// Price is a typed accessor only a mapped row has.
func (p *Product) Price() int64 { return p.GetInt64("price") }

type Products struct{ *table.Selection }

type ProductRepository struct{ *repository.Repository }

type ProductTypeRepository struct{ *repository.Repository }

type failingStructure struct{ table.Registry }

func (failingStructure) RegisterScopes(string, []*table.Scope) error {
	return errors.New("scopes are frozen")
}

func newExplorer(t *testing.T) *table.Explorer {
	t.Helper()
	conventions, err := table.NewConventions(database.ConventionsConfig{ForeignKeyFile: testdb.ForeignKeyFile(t)})
	if err != nil {
		t.Fatalf("conventions: %v", err)
	}
	return table.NewExplorer(testdb.New(t), conventions)
}

func cheap() *table.Scope {
	return table.NewScope("cheap", func(...interface{}) map[string]interface{} {
		return map[string]interface{}{"price < ?": 20}
	})
}

func TestMapRepository(t *testing.T) {
	explorer := newExplorer(t)
	m := NewMapper(nil)

	products := &ProductRepository{repository.New(explorer, "products", repository.WithScopes(cheap()))}
	err := m.MapRepository(products,
		func(row *table.ActiveRow) table.Record { return &Product{row} },
		func(sel *table.Selection) table.Collection { return &Products{sel} })
	if err != nil {
		t.Fatalf("MapRepository failed: %v", err)
	}
	if products.Structure() != m.Structure() {
		t.Fatal("repository does not use the mapper structure")
	}
	if m.Structure().Scope("products", "cheap") == nil {
		t.Fatal("repository scopes were not registered")
	}

	rec, err := products.Table().Get(context.Background(), 6)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	product, ok := rec.(*Product)
	if !ok {
		t.Fatalf("row hydrated as %T, want *Product", rec)
	}
	if product.Price() != 99 {
		t.Errorf("price = %d, want 99", product.Price())
	}

	coll, err := products.Scope("cheap")
	if err != nil {
		t.Fatalf("Scope failed: %v", err)
	}
	if _, ok := coll.(*Products); !ok {
		t.Errorf("scope collection is %T, want *Products", coll)
	}
	if n, err := coll.Rows().Count(context.Background(), "*"); err != nil || n != 2 {
		t.Errorf("cheap count = %d, %v; want 2", n, err)
	}
}

func TestMapperLookups(t *testing.T) {
	explorer := newExplorer(t)
	m := NewMapper(nil)

	products := &ProductRepository{repository.New(explorer, "products")}
	types := &ProductTypeRepository{repository.New(explorer, "product_types")}
	for _, repo := range []repository.Mappable{products, types} {
		if err := m.MapRepository(repo, nil, nil); err != nil {
			t.Fatalf("MapRepository(%s): %v", repo.TableName(), err)
		}
	}

	if got := m.Repository(reflect.TypeOf(products)); got != products {
		t.Errorf("Repository(*ProductRepository) = %v", got)
	}
	if got, ok := RepositoryOf[*ProductTypeRepository](m); !ok || got != types {
		t.Errorf("RepositoryOf[*ProductTypeRepository] = %v, %v", got, ok)
	}
	if _, ok := RepositoryOf[*repository.Repository](m); ok {
		t.Error("RepositoryOf found a repository that was never mapped")
	}
	if got := m.RepositoryFor("product_types"); got != types {
		t.Errorf("RepositoryFor(product_types) = %v", got)
	}
	if got := m.RepositoryFor("tokens"); got != nil {
		t.Errorf("RepositoryFor(tokens) = %v, want nil", got)
	}

	replacement := &ProductRepository{repository.New(explorer, "products")}
	if err := m.MapRepository(replacement, nil, nil); err != nil {
		t.Fatalf("MapRepository: %v", err)
	}
	if got, _ := RepositoryOf[*ProductRepository](m); got != replacement {
		t.Error("mapping the same type again did not replace the repository")
	}
}

func TestMapTableName(t *testing.T) {
	explorer := newExplorer(t)
	m := NewMapper(table.NewBaseStructure()).
		MapTableName("products", func(row *table.ActiveRow) table.Record { return &Product{row} }, nil)

	sel := explorer.Table("products", m.Structure())
	if _, ok := sel.Wrap().(*table.Selection); !ok {
		t.Errorf("selection without a factory wrapped as %T", sel.Wrap())
	}
	rec, err := sel.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := rec.(*Product); !ok {
		t.Errorf("row hydrated as %T, want *Product", rec)
	}
}

func TestMapRepositoryErrors(t *testing.T) {
	explorer := newExplorer(t)

	if err := NewMapper(nil).MapRepository(nil, nil, nil); err == nil {
		t.Error("mapping a nil repository succeeded")
	}

	m := NewMapper(failingStructure{table.NewBaseStructure()})
	repo := &ProductRepository{repository.New(explorer, "products", repository.WithScopes(cheap()))}
	if err := m.MapRepository(repo, nil, nil); err == nil {
		t.Fatal("MapRepository succeeded with a structure rejecting scopes")
	}
	if m.RepositoryFor("products") != nil {
		t.Error("a repository that failed to map was stored")
	}
}
