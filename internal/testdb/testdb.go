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

// Package testdb opens throwaway SQLite databases seeded with the product
// catalogue used across the package tests.
package testdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomoncle/simplemapper/database"
)

const Schema = `
CREATE TABLE product_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(255) NOT NULL,
	image VARCHAR(255) NOT NULL
);

CREATE TABLE products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(255) NOT NULL,
	image VARCHAR(255) NOT NULL,
	type_id INTEGER REFERENCES product_types (id),
	price INTEGER NOT NULL DEFAULT 0,
	is_deleted BOOLEAN NOT NULL DEFAULT 0,
	is_hidden BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NULL,
	updated_at DATETIME NULL
);

CREATE TABLE product_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(255) NOT NULL
);

CREATE TABLE products_product_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products (id),
	product_category_id INTEGER NOT NULL REFERENCES product_categories (id),
	sorting INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE tokens (
	token VARCHAR(36) NOT NULL PRIMARY KEY,
	label VARCHAR(255) NOT NULL,
	created_at DATETIME NULL,
	updated_at DATETIME NULL
);
`

// Seed holds 5 product types, 10 products (3 deleted, 1 hidden),
// 7 categories and 12 product/category links.
const Seed = `
INSERT INTO product_types (id, title, image) VALUES
	(1, 'Product type 1', 'image 1'),
	(2, 'Product type 2', 'image 2'),
	(3, 'Product type 3', 'image 3'),
	(4, 'Product type 4', 'image 4'),
	(5, 'Product type 5', 'image 5');

INSERT INTO products (id, title, image, type_id, price, is_deleted, is_hidden, created_at, updated_at) VALUES
	(1, 'Product 1', 'Product image 1', 1, 24, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(2, 'Product 2', 'Product image 2', 1, 20, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(3, 'Product 3', 'Product image 3', 1, 17, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(4, 'Product 4', 'Product image 4', 2, 74, 1, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(5, 'Product 5', 'Product image 5', 3, 25, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(6, 'Product 6', 'Product image 6', 3, 99, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(7, 'Product 7', 'Product image 7', 4, 7, 1, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(8, 'Product 8', 'Product image 8', 4, 64, 1, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(9, 'Product 9', 'Product image 9', 5, 32, 0, 1, '2020-01-01 10:00:00', '2020-01-01 10:00:00'),
	(10, 'Product 10', 'Product image 10', 5, 82, 0, 0, '2020-01-01 10:00:00', '2020-01-01 10:00:00');

INSERT INTO product_categories (id, title) VALUES
	(1, 'Category 1'), (2, 'Category 2'), (3, 'Category 3'), (4, 'Category 4'),
	(5, 'Category 5'), (6, 'Category 6'), (7, 'Category 7');

-- sorting is reversed on purpose for ordering tests
INSERT INTO products_product_categories (id, product_id, product_category_id, sorting) VALUES
	(1, 1, 1, 10), (2, 1, 2, 9), (3, 2, 3, 8), (4, 2, 4, 7),
	(5, 3, 5, 6), (6, 3, 6, 5), (7, 4, 7, 4), (8, 5, 1, 3),
	(9, 6, 2, 2), (10, 7, 3, 1), (11, 8, 4, 11), (12, 9, 5, 15);
`

// ForeignKeys declares the catalogue relations in the format read by
// table.LoadForeignKeys.
const ForeignKeys = `
foreign_keys:
  - table: products
    column: type_id
    reference_table: product_types
    reference_column: id
  - table: products_product_categories
    column: product_id
    reference_table: products
    reference_column: id
  - table: products_product_categories
    column: product_category_id
    reference_table: product_categories
    reference_column: id
`

// Config returns a single-connection SQLite config for a file in dir.
func Config(dir string) *database.ConnectionConfig {
	cfg := database.DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(dir, "catalogue")
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.HealthCheckInterval = 0
	cfg.SlowQueryTime = time.Second
	return cfg
}

// New connects to a fresh seeded database that is closed with the test.
func New(t testing.TB) database.AbstractDatabaseManager {
	t.Helper()
	database.InitLogger(database.NopLogger{})

	manager := database.NewDatabaseManager(Config(t.TempDir()))
	manager.SetLogger(database.NopLogger{})
	ctx := context.Background()
	if err := manager.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	for _, script := range []string{Schema, Seed} {
		if _, err := database.ExecScript(ctx, manager.GetDB(), script); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return manager
}

// ForeignKeyFile writes ForeignKeys to a temporary file and returns its path.
func ForeignKeyFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foreign_keys.yaml")
	if err := os.WriteFile(path, []byte(ForeignKeys), 0o600); err != nil {
		t.Fatalf("write foreign keys: %v", err)
	}
	return path
}
