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
	"sync"
	"testing"
	"time"

	"github.com/tomoncle/simplemapper/behaviour"
	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/internal/testdb"
	"github.com/tomoncle/simplemapper/table"
)

type Product struct{ *table.ActiveRow }

type Products struct{ *table.Selection }

type ProductRepository struct{ *Repository }

var clock = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func productScopes() []*table.Scope {
	return []*table.Scope{
		table.NewScope("admin", func(args ...interface{}) map[string]interface{} {
			return map[string]interface{}{"products.is_deleted": false}
		}),
		table.NewScope("priceGreater", func(args ...interface{}) map[string]interface{} {
			var price interface{} = 20
			if len(args) > 0 {
				price = args[0]
			}
			return map[string]interface{}{"products.price > ?": price}
		}),
	}
}

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) SetLevel(database.LogLevel) {}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) Debug(msg string, _ ...interface{}) { l.record(msg) }
func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{})  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.record(msg) }

func (l *recordingLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if m == msg {
			n++
		}
	}
	return n
}

// journal records every hook call and can fail one of them.
type journal struct {
	behaviour.Base
	name   string
	calls  *[]string
	failOn string
	old    table.Record
	soft   bool
}

func (j *journal) note(hook string) error {
	*j.calls = append(*j.calls, j.name+"."+hook)
	if hook == j.failOn {
		return errors.New(j.name + " refused " + hook)
	}
	return nil
}

func (j *journal) BeforeInsert(_ context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	return data, j.note("BeforeInsert")
}

func (j *journal) AfterInsert(context.Context, table.Record, map[string]interface{}) error {
	return j.note("AfterInsert")
}

func (j *journal) BeforeUpdate(_ context.Context, _ table.Record, data map[string]interface{}) (map[string]interface{}, error) {
	return data, j.note("BeforeUpdate")
}

func (j *journal) AfterUpdate(_ context.Context, old, _ table.Record, _ map[string]interface{}) error {
	j.old = old
	return j.note("AfterUpdate")
}

func (j *journal) BeforeDelete(_ context.Context, _ table.Record, soft bool) error {
	j.soft = soft
	return j.note("BeforeDelete")
}

func (j *journal) AfterDelete(_ context.Context, old table.Record, _ bool) error {
	j.old = old
	return j.note("AfterDelete")
}

type catalogue struct {
	manager   database.AbstractDatabaseManager
	explorer  *table.Explorer
	structure *table.BaseStructure
	logger    *recordingLogger
}

func newCatalogue(t *testing.T) *catalogue {
	t.Helper()
	manager := testdb.New(t)
	conventions, err := table.NewConventions(database.ConventionsConfig{ForeignKeyFile: testdb.ForeignKeyFile(t)})
	if err != nil {
		t.Fatalf("conventions: %v", err)
	}
	structure := table.NewBaseStructure().RegisterTable("products",
		func(row *table.ActiveRow) table.Record { return &Product{row} },
		func(sel *table.Selection) table.Collection { return &Products{sel} })
	return &catalogue{
		manager:   manager,
		explorer:  table.NewExplorer(manager, conventions),
		structure: structure,
		logger:    &recordingLogger{},
	}
}

func (c *catalogue) products(t *testing.T, opts ...Option) *ProductRepository {
	t.Helper()
	opts = append([]Option{
		WithBehaviour(behaviour.NewDefaultDate().WithClock(func() time.Time { return clock })),
		WithScopes(productScopes()...),
		WithLogger(c.logger),
	}, opts...)
	repo := &ProductRepository{New(c.explorer, "products", opts...)}
	if err := repo.SetStructure(c.structure); err != nil {
		t.Fatalf("set structure: %v", err)
	}
	return repo
}

func (c *catalogue) count(t *testing.T, sel *table.Selection) int64 {
	t.Helper()
	n, err := sel.Count(context.Background(), "*")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (c *catalogue) get(t *testing.T, repo *ProductRepository, id int) table.Record {
	t.Helper()
	rec, err := repo.Table().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	return rec
}
