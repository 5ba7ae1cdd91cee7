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
	"testing"

	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/internal/testdb"
)

type Product struct{ *ActiveRow }

func (p *Product) Type(ctx context.Context) (*ProductType, error) {
	rec, err := p.Ref(ctx, "type", "")
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.(*ProductType), nil
}

func (p *Product) Categories(ctx context.Context) (Pairs, error) {
	return p.MMRelated(ctx, p.Related("products_product_categories", ""), "product_category", "id")
}

type ProductType struct{ *ActiveRow }

type ProductCategory struct{ *ActiveRow }

type Products struct{ *Selection }

func (p *Products) Active() *Products {
	p.WhereMap(map[string]interface{}{"is_hidden": false, "is_deleted": false})
	return p
}

func catalogueStructure() *BaseStructure {
	return NewBaseStructure().
		RegisterTable("products",
			func(row *ActiveRow) Record { return &Product{row} },
			func(sel *Selection) Collection { return &Products{sel} }).
		RegisterTable("product_types", func(row *ActiveRow) Record { return &ProductType{row} }, nil).
		RegisterTable("product_categories", func(row *ActiveRow) Record { return &ProductCategory{row} }, nil)
}

func adminScopes() []*Scope {
	return []*Scope{
		NewScope("admin", func(args ...interface{}) map[string]interface{} {
			return map[string]interface{}{"products.is_deleted": false}
		}),
		NewScope("priceGreater", func(args ...interface{}) map[string]interface{} {
			var price interface{} = 20
			if len(args) > 0 {
				price = args[0]
			}
			return map[string]interface{}{"products.price > ?": price}
		}),
	}
}

// newCatalogue opens the seeded catalogue with foreign key conventions and
// the product structure, including the admin scopes.
func newCatalogue(t *testing.T) (*Explorer, *BaseStructure) {
	t.Helper()
	manager := testdb.New(t)
	conventions, err := NewConventions(database.ConventionsConfig{ForeignKeyFile: testdb.ForeignKeyFile(t)})
	if err != nil {
		t.Fatalf("conventions: %v", err)
	}
	structure := catalogueStructure()
	if err := structure.RegisterScopes("products", adminScopes()); err != nil {
		t.Fatalf("scopes: %v", err)
	}
	return NewExplorer(manager, conventions), structure
}

func mustGet(t *testing.T, sel *Selection, key interface{}) Record {
	t.Helper()
	rec, err := sel.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %v: %v", key, err)
	}
	if rec == nil {
		t.Fatalf("row %v not found", key)
	}
	return rec
}

func mustCount(t *testing.T, sel *Selection) int64 {
	t.Helper()
	n, err := sel.Count(context.Background(), "*")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
