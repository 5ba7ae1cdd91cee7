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
	"fmt"
	"os"
	"strings"

	"github.com/tomoncle/simplemapper/database"
	"gopkg.in/yaml.v3"
)

// Conventions decide how tables relate to each other.
type Conventions interface {
	// Primary returns the primary key column of table.
	Primary(table string) string
	// BelongsTo resolves ref(key) on a row of table to the referenced table
	// and the column of table holding the foreign key.
	BelongsTo(table, key string) (refTable, column string)
	// HasMany resolves related(key) on a row of table to the referencing
	// table and its column pointing back at table.
	HasMany(table, key string) (relTable, column string)
}

// StaticConventions derives everything from name formats. Each format may
// contain one %s.
type StaticConventions struct {
	PrimaryKey string
	ForeignKey string
	Table      string
}

var _ Conventions = (*StaticConventions)(nil)

// NewStaticConventions returns the "id", "%s_id", "%s" conventions.
func NewStaticConventions() *StaticConventions {
	return &StaticConventions{PrimaryKey: "id", ForeignKey: "%s_id", Table: "%s"}
}

func format(f, s string) string {
	if strings.Contains(f, "%s") {
		return fmt.Sprintf(f, s)
	}
	return f
}

func (c *StaticConventions) Primary(table string) string {
	return format(c.PrimaryKey, table)
}

func (c *StaticConventions) BelongsTo(table, key string) (string, string) {
	return format(c.Table, key), format(c.ForeignKey, key)
}

func (c *StaticConventions) HasMany(table, key string) (string, string) {
	return format(c.Table, key), format(c.ForeignKey, table)
}

// ForeignKey describes one foreign key constraint.
type ForeignKey struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	Description     string `yaml:"description,omitempty"`
}

// ForeignKeyConfig is the YAML document listing foreign keys.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
}

// ForeignKeyConventions resolves relationships from declared foreign keys
// and falls back to static conventions for anything undeclared.
type ForeignKeyConventions struct {
	fallback *StaticConventions
	keys     []ForeignKey
}

var _ Conventions = (*ForeignKeyConventions)(nil)

func NewForeignKeyConventions(fallback *StaticConventions, keys []ForeignKey) *ForeignKeyConventions {
	if fallback == nil {
		fallback = NewStaticConventions()
	}
	return &ForeignKeyConventions{fallback: fallback, keys: keys}
}

// LoadForeignKeys reads a YAML foreign key list.
func LoadForeignKeys(path string) ([]ForeignKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var cfg ForeignKeyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file: %w", err)
	}
	for i, fk := range cfg.ForeignKeys {
		if fk.Table == "" || fk.Column == "" || fk.ReferenceTable == "" {
			return nil, fmt.Errorf("foreign key #%d: table, column and reference_table are required", i)
		}
	}
	return cfg.ForeignKeys, nil
}

func (c *ForeignKeyConventions) Primary(table string) string {
	for _, fk := range c.keys {
		if fk.ReferenceTable == table && fk.ReferenceColumn != "" {
			return fk.ReferenceColumn
		}
	}
	return c.fallback.Primary(table)
}

// BelongsTo accepts the referenced table name, the foreign key column or the
// column without its "_id" suffix as key.
func (c *ForeignKeyConventions) BelongsTo(table, key string) (string, string) {
	for _, fk := range c.keys {
		if fk.Table != table {
			continue
		}
		if fk.ReferenceTable == key || fk.Column == key || strings.TrimSuffix(fk.Column, "_id") == key {
			return fk.ReferenceTable, fk.Column
		}
	}
	return c.fallback.BelongsTo(table, key)
}

func (c *ForeignKeyConventions) HasMany(table, key string) (string, string) {
	for _, fk := range c.keys {
		if fk.Table == key && fk.ReferenceTable == table {
			return fk.Table, fk.Column
		}
	}
	return c.fallback.HasMany(table, key)
}

// NewConventions builds conventions from configuration: static formats with
// "id", "%s_id" and "%s" defaults, wrapped with foreign keys when a file is set.
func NewConventions(cfg database.ConventionsConfig) (Conventions, error) {
	static := NewStaticConventions()
	if cfg.PrimaryKey != "" {
		static.PrimaryKey = cfg.PrimaryKey
	}
	if cfg.ForeignKey != "" {
		static.ForeignKey = cfg.ForeignKey
	}
	if cfg.Table != "" {
		static.Table = cfg.Table
	}
	if cfg.ForeignKeyFile == "" {
		return static, nil
	}
	keys, err := LoadForeignKeys(cfg.ForeignKeyFile)
	if err != nil {
		return nil, err
	}
	return NewForeignKeyConventions(static, keys), nil
}
