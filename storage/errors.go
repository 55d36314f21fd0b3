// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import "errors"

var (
	// ErrUnregisteredTag indicates a set or tagged query against a tag with no
	// registered adapter. This is a configuration fault, not a domain outcome.
	ErrUnregisteredTag = errors.New("no adapter registered for tag")

	// ErrDraftEntity indicates a draft reached an adapter. Adapters persist
	// declared entities only; declaration happens in the federated repository.
	ErrDraftEntity = errors.New("entity has not been declared")

	// ErrTagMismatch indicates an entity routed to an adapter of another tag.
	ErrTagMismatch = errors.New("entity tag does not match adapter tag")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates an envelope encode/decode failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrInvalidBatchItem indicates a batch item with no entity (set) or id
	// (remove).
	ErrInvalidBatchItem = errors.New("invalid batch item")
)
