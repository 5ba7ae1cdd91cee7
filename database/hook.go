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
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var (
	selectColor = color.New(color.FgGreen)
	insertColor = color.New(color.FgBlue)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgMagenta)
	otherColor  = color.New(color.FgRed)
	slowColor   = color.New(color.BgYellow, color.FgHiWhite)
	errorColor  = color.New(color.BgRed, color.FgHiWhite)
)

func operationColor(event *bun.QueryEvent) *color.Color {
	switch event.Operation() {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

// SlowQueryHook reports queries running longer than the configured threshold.
// With a logger the report goes through it, otherwise it is printed in colour
// to the writer.
type SlowQueryHook struct {
	slowTime time.Duration
	logger   Logger
	writer   io.Writer
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

// NewSlowQueryHook returns a hook reporting queries slower than slowTime.
func NewSlowQueryHook(slowTime time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{slowTime: slowTime, logger: logger, writer: os.Stdout}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
		return
	}
	_, _ = fmt.Fprintln(h.writer,
		time.Now().Format("2006-01-02 15:04:05.000"),
		fmt.Sprintf("%15s", "[BUN_SLOW]"),
		fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
		"  ", slowColor.Sprint(event.Query),
	)
}

// ErrorQueryHook prints failed queries, ignoring the "no rows" and "tx done"
// errors that are part of normal control flow.
type ErrorQueryHook struct {
	writer io.Writer
}

var _ bun.QueryHook = (*ErrorQueryHook)(nil)

func NewErrorQueryHook(w io.Writer) *ErrorQueryHook {
	if w == nil {
		w = os.Stderr
	}
	return &ErrorQueryHook{writer: w}
}

func (h *ErrorQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *ErrorQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err == nil || errors.Is(event.Err, sql.ErrNoRows) || errors.Is(event.Err, sql.ErrTxDone) {
		return
	}
	_, _ = fmt.Fprintln(h.writer,
		time.Now().Format("2006-01-02 15:04:05.000"),
		fmt.Sprintf("%15s", "[BUN_ERR]"),
		fmt.Sprintf("%17s", time.Since(event.StartTime).Round(time.Microsecond)),
		"  ", operationColor(event).Sprint(event.Query),
		"\t", errorColor.Sprintf(" %T: %s ", event.Err, event.Err.Error()),
	)
}
