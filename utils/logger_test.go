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

package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":    logrus.DebugLevel,
		" WARN ":   logrus.WarnLevel,
		"warning":  logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"whatever": logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerRegistry(t *testing.T) {
	a := NewLogger("REGISTRY_TEST")
	if NewLogger("REGISTRY_TEST") != a {
		t.Fatal("the same name must return the same logger")
	}
	if !SetLoggerLevel("REGISTRY_TEST", "debug") || a.GetLevel() != logrus.DebugLevel {
		t.Fatal("level not applied to a registered logger")
	}
	if SetLoggerLevel("NOT_REGISTERED", "debug") {
		t.Fatal("unknown logger must report false")
	}
}

func TestJSONLogFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&JSONLogFormatter{LoggerName: "MAPPER"})
	l.WithField("table", "products").Info("Record inserted")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if out["logger"] != "MAPPER" || out["level"] != "INFO" || out["table"] != "products" {
		t.Fatalf("unexpected entry %v", out)
	}
}

func TestLog4jColorFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&Log4jColorFormatter{LoggerName: "MAPPER", NameWidth: 10})
	l.Warn("Transaction rolled back")
	if !strings.Contains(buf.String(), "Transaction rolled back") || !strings.Contains(buf.String(), "MAPPER") {
		t.Fatalf("unexpected line %q", buf.String())
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SIMPLEMAPPER_TEST_INT", "42")
	t.Setenv("SIMPLEMAPPER_TEST_BOOL", "true")
	t.Setenv("SIMPLEMAPPER_TEST_BAD_INT", "x")
	if EnvDefaultInt("SIMPLEMAPPER_TEST_INT", 1) != 42 || EnvDefaultInt("SIMPLEMAPPER_TEST_BAD_INT", 7) != 7 {
		t.Fatal("EnvDefaultInt")
	}
	if !EnvDefaultBool("SIMPLEMAPPER_TEST_BOOL", false) || !EnvDefaultBool("SIMPLEMAPPER_TEST_UNSET", true) {
		t.Fatal("EnvDefaultBool")
	}
	if EnvDefaultString("SIMPLEMAPPER_TEST_UNSET", "def") != "def" {
		t.Fatal("EnvDefaultString")
	}
}
