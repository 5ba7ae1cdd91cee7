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

	"github.com/tomoncle/simplemapper/database"
	"github.com/uptrace/bun"
)

// Connector hands out the current database handle and can replace it.
// database.AbstractDatabaseManager satisfies it.
type Connector interface {
	GetDB() *bun.DB
	Reconnect(ctx context.Context) error
}

type staticConnector struct {
	db *bun.DB
}

// FromDB wraps a plain Bun handle. It cannot reconnect.
func FromDB(db *bun.DB) Connector {
	return staticConnector{db: db}
}

func (c staticConnector) GetDB() *bun.DB { return c.db }

func (c staticConnector) Reconnect(context.Context) error {
	return fmt.Errorf("reconnect is not supported on a static connection")
}

// Explorer is the entry point to tables: it owns the connection and the
// relationship conventions shared by every selection and row.
type Explorer struct {
	conn        Connector
	conventions Conventions
}

// NewExplorer uses static conventions when conventions is nil.
func NewExplorer(conn Connector, conventions Conventions) *Explorer {
	if conventions == nil {
		conventions = NewStaticConventions()
	}
	return &Explorer{conn: conn, conventions: conventions}
}

func (e *Explorer) DB() *bun.DB { return e.conn.GetDB() }

func (e *Explorer) Conventions() Conventions { return e.conventions }

// Conn returns the transaction running on ctx or the database handle.
func (e *Explorer) Conn(ctx context.Context) (bun.IDB, error) {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx, nil
	}
	db := e.conn.GetDB()
	if db == nil {
		return nil, ErrNotConnected
	}
	return db, nil
}

// Table starts a selection over all rows of name.
func (e *Explorer) Table(name string, structure Structure) *Selection {
	return newSelection(e, structure, name)
}

// Transaction runs fn in a transaction, joining the one on ctx if present.
func (e *Explorer) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db := e.conn.GetDB()
	if db == nil && !database.InTransaction(ctx) {
		return ErrNotConnected
	}
	return database.RunInTx(ctx, db, fn)
}

func (e *Explorer) InTransaction(ctx context.Context) bool {
	return database.InTransaction(ctx)
}

func (e *Explorer) Reconnect(ctx context.Context) error {
	return e.conn.Reconnect(ctx)
}
