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

package behaviour

import (
	"context"

	"github.com/tomoncle/simplemapper/table"
)

// Behaviour is a set of hooks run by a repository inside the transaction of
// each write. Before hooks may rewrite the data; an error from any hook
// aborts the write and rolls the transaction back.
type Behaviour interface {
	BeforeInsert(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error)
	AfterInsert(ctx context.Context, record table.Record, data map[string]interface{}) error
	BeforeUpdate(ctx context.Context, record table.Record, data map[string]interface{}) (map[string]interface{}, error)
	AfterUpdate(ctx context.Context, old, record table.Record, data map[string]interface{}) error
	BeforeDelete(ctx context.Context, record table.Record, soft bool) error
	AfterDelete(ctx context.Context, old table.Record, soft bool) error
}

// Base implements every hook as a no-op. Embed it and override what you need.
type Base struct{}

var _ Behaviour = Base{}

func (Base) BeforeInsert(_ context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	return data, nil
}

func (Base) AfterInsert(context.Context, table.Record, map[string]interface{}) error { return nil }

func (Base) BeforeUpdate(_ context.Context, _ table.Record, data map[string]interface{}) (map[string]interface{}, error) {
	return data, nil
}

func (Base) AfterUpdate(context.Context, table.Record, table.Record, map[string]interface{}) error {
	return nil
}

func (Base) BeforeDelete(context.Context, table.Record, bool) error { return nil }

func (Base) AfterDelete(context.Context, table.Record, bool) error { return nil }

// copyData keeps hooks from mutating the caller's map.
func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}
