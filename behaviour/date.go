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
	"time"

	"github.com/tomoncle/simplemapper/table"
)

const (
	DefaultCreatedAt = "created_at"
	DefaultUpdatedAt = "updated_at"
)

// Date stamps the creation and modification time of rows.
type Date struct {
	Base
	createdAt string
	updatedAt string
	now       func() time.Time
}

// NewDate stamps createdAt on insert and updatedAt on insert and update.
// An empty field name turns that stamp off.
func NewDate(createdAt, updatedAt string) *Date {
	return &Date{createdAt: createdAt, updatedAt: updatedAt, now: time.Now}
}

// NewDefaultDate uses the created_at and updated_at columns.
func NewDefaultDate() *Date {
	return NewDate(DefaultCreatedAt, DefaultUpdatedAt)
}

// WithClock replaces the time source.
func (b *Date) WithClock(now func() time.Time) *Date {
	b.now = now
	return b
}

func (b *Date) CreatedAtField() string { return b.createdAt }

func (b *Date) UpdatedAtField() string { return b.updatedAt }

func (b *Date) BeforeInsert(_ context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	data = copyData(data)
	now := b.now()
	if b.createdAt != "" {
		data[b.createdAt] = now
	}
	if b.updatedAt != "" {
		data[b.updatedAt] = now
	}
	return data, nil
}

func (b *Date) BeforeUpdate(_ context.Context, _ table.Record, data map[string]interface{}) (map[string]interface{}, error) {
	if b.updatedAt == "" {
		return data, nil
	}
	data = copyData(data)
	data[b.updatedAt] = b.now()
	return data, nil
}
