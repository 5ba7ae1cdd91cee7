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

import "errors"

var (
	ErrScopeNotDefined = errors.New("scope is not defined")
	ErrInvalidScope    = errors.New("scopes must have a name and a callback")
	ErrUndefinedMethod = errors.New("call to undefined method")
	ErrNoPrimary       = errors.New("row has no primary key value")
	ErrNotConnected    = errors.New("database not connected")
	ErrRowNotFound     = errors.New("row not found")
)
