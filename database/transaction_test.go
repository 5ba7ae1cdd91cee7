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

package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomoncle/simplemapper/database"
	"github.com/tomoncle/simplemapper/internal/testdb"
)

func countTypes(t *testing.T, ctx context.Context, manager database.AbstractDatabaseManager) int {
	t.Helper()
	n, err := database.Conn(ctx, manager.GetDB()).NewSelect().Table("product_types").Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRunInTxCommit(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()

	err := database.RunInTx(ctx, manager.GetDB(), func(ctx context.Context) error {
		if !database.InTransaction(ctx) {
			t.Fatal("context must carry the transaction")
		}
		_, err := database.Conn(ctx, manager.GetDB()).
			NewRaw("INSERT INTO product_types (title, image) VALUES (?, ?)", "Type 6", "image 6").
			Exec(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
	if n := countTypes(t, ctx, manager); n != 6 {
		t.Fatalf("expected 6 types after commit, got %d", n)
	}
}

func TestRunInTxRollback(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.RunInTx(ctx, manager.GetDB(), func(ctx context.Context) error {
		if _, err := database.Conn(ctx, manager.GetDB()).
			NewRaw("DELETE FROM product_types WHERE id = ?", 5).Exec(ctx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := countTypes(t, ctx, manager); n != 5 {
		t.Fatalf("expected rollback to keep 5 types, got %d", n)
	}
}

func TestRunInTxNestedJoinsOuter(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()
	boom := errors.New("outer failed")

	err := database.RunInTx(ctx, manager.GetDB(), func(ctx context.Context) error {
		outer, _ := database.TxFrom(ctx)
		err := database.RunInTx(ctx, manager.GetDB(), func(ctx context.Context) error {
			inner, _ := database.TxFrom(ctx)
			if inner.Tx != outer.Tx {
				t.Fatal("nested call must join the outer transaction")
			}
			_, err := database.Conn(ctx, manager.GetDB()).
				NewRaw("DELETE FROM product_types WHERE id = ?", 4).Exec(ctx)
			return err
		})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected outer error, got %v", err)
	}
	if n := countTypes(t, ctx, manager); n != 5 {
		t.Fatalf("inner work must roll back with the outer transaction, got %d types", n)
	}
}

func TestRunInTxPanicRollsBack(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic must propagate")
			}
		}()
		_ = database.RunInTx(ctx, manager.GetDB(), func(ctx context.Context) error {
			_, _ = database.Conn(ctx, manager.GetDB()).NewRaw("DELETE FROM product_types").Exec(ctx)
			panic("boom")
		})
	}()
	if n := countTypes(t, ctx, manager); n != 5 {
		t.Fatalf("expected rollback after panic, got %d types", n)
	}
}

func TestExecScriptDir(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	files := map[string]string{
		"001_table.sql": "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL);",
		"002_data.sql":  "INSERT INTO notes (body) VALUES ('first'); INSERT INTO notes (body) VALUES ('second');",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := database.ExecScriptDir(ctx, manager.GetDB(), dir); err != nil {
		t.Fatalf("exec dir: %v", err)
	}
	n, err := manager.GetDB().NewSelect().Table("notes").Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 notes, got %d (%v)", n, err)
	}
	if _, err := database.ExecScript(ctx, manager.GetDB(), "INSERT INTO missing VALUES (1);"); err == nil {
		t.Fatal("expected an error for a missing table")
	}
}

func TestManagerHealth(t *testing.T) {
	manager := testdb.New(t)
	ctx := context.Background()
	if err := manager.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if status := manager.HealthCheck(ctx); !status.Connected {
		t.Fatalf("expected healthy status, got %+v", status)
	}
	if err := manager.Reconnect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if countTypes(t, ctx, manager) != 5 {
		t.Fatal("data must survive a reconnect to the same file")
	}

	if err := manager.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := manager.Ping(ctx); err == nil {
		t.Fatal("ping after close succeeded")
	}
	if status := manager.HealthCheck(ctx); status.Healthy || status.LastError == "" {
		t.Fatalf("expected an unhealthy status after close, got %+v", status)
	}
	if stats := manager.GetStats(); stats.OpenConns != 0 {
		t.Fatalf("expected empty stats after close, got %+v", stats)
	}
}
