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

	"github.com/google/uuid"
)

// Uuid4 fills a column with a random version 4 UUID on insert.
type Uuid4 struct {
	Base
	field string
}

// NewUuid4 fills field, "id" when empty.
func NewUuid4(field string) *Uuid4 {
	if field == "" {
		field = "id"
	}
	return &Uuid4{field: field}
}

func (b *Uuid4) Field() string { return b.field }

// BeforeInsert keeps a value the caller already set.
func (b *Uuid4) BeforeInsert(_ context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	if !isBlank(data[b.field]) {
		return data, nil
	}
	data = copyData(data)
	data[b.field] = uuid.NewString()
	return data, nil
}

func isBlank(v interface{}) bool {
	switch id := v.(type) {
	case nil:
		return true
	case string:
		return id == ""
	case []byte:
		return len(id) == 0
	case uuid.UUID:
		return id == uuid.Nil
	}
	return false
}
