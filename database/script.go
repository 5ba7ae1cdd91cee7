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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

var fileOrderRe = regexp.MustCompile(`^(\d+)[_-]`)

// ExecScript executes every statement of a multi-statement SQL script in
// order and returns the total number of affected rows.
func ExecScript(ctx context.Context, db bun.IDB, script string) (int64, error) {
	var total int64
	for i, stmt := range SplitStatements(script) {
		res, err := db.NewRaw(stmt).Exec(ctx)
		if err != nil {
			return total, fmt.Errorf("statement %d failed: %w", i+1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// ExecScriptFile executes the SQL file at path.
func ExecScriptFile(ctx context.Context, db bun.IDB, path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read SQL file: %w", err)
	}
	n, err := ExecScript(ctx, db, string(data))
	if err != nil {
		return n, fmt.Errorf("SQL file execution failed %s: %w", path, err)
	}
	return n, nil
}

// ExecScriptDir executes every *.sql file in dir. Files named with a numeric
// prefix ("001_schema.sql") run in prefix order, the rest afterwards by name.
func ExecScriptDir(ctx context.Context, db bun.IDB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read SQL directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		oi, oj := fileOrder(files[i]), fileOrder(files[j])
		if oi != oj {
			return oi < oj
		}
		return files[i] < files[j]
	})

	logger := GetLogger()
	for _, name := range files {
		n, err := ExecScriptFile(ctx, db, filepath.Join(dir, name))
		if err != nil {
			return err
		}
		logger.Debug("SQL file executed successfully", "file", name, "rows_affected", n)
	}
	return nil
}

func fileOrder(name string) int {
	if m := fileOrderRe.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 1 << 30
}

// SplitStatements splits a script on semicolons outside quotes, dropping
// "--" line comments and empty statements.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quote   rune
		comment bool
	)
	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case comment:
			if r == '\n' {
				comment = false
				cur.WriteRune(r)
			}
			continue
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			continue
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			if s := strings.TrimSpace(cur.String()); s != "" {
				stmts = append(stmts, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
