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
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	script := `
-- schema
CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
INSERT INTO notes (body) VALUES ('a; b'), ("c -- d");
-- trailing comment;

INSERT INTO notes (body) VALUES ('it''s')
`
	got := SplitStatements(script)
	want := []string{
		"CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)",
		`INSERT INTO notes (body) VALUES ('a; b'), ("c -- d")`,
		"INSERT INTO notes (body) VALUES ('it''s')",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitStatements() = %#v\nwant %#v", got, want)
	}
	if n := len(SplitStatements(" ; ;\n-- nothing\n")); n != 0 {
		t.Fatalf("expected no statements, got %d", n)
	}
}

func TestFileOrder(t *testing.T) {
	if fileOrder("002_schema.sql") != 2 || fileOrder("010-data.sql") != 10 {
		t.Fatal("numeric prefixes not parsed")
	}
	if fileOrder("seed.sql") <= fileOrder("010_data.sql") {
		t.Fatal("unprefixed files must run last")
	}
}
