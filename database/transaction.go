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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type txKey struct{}

// WithTx returns a context carrying tx. Queries issued through Conn with the
// returned context run inside the transaction.
func WithTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	return tx, ok
}

// InTransaction reports whether ctx carries a running transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := TxFrom(ctx)
	return ok
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}

// RunInTx runs fn inside a transaction. When ctx already carries one, fn joins
// it and commit/rollback is left to the outer caller. Otherwise a new
// transaction is started, committed when fn returns nil and rolled back when
// fn returns an error or panics.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	if db == nil {
		return fmt.Errorf("database not connected")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
	}()

	if err = fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
