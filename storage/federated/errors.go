// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package federated

import "errors"

var (
	// ErrIndexRequired is returned when no identity index is provided.
	ErrIndexRequired = errors.New("identity index is required")

	// ErrNoAdapters is returned when the adapter list is empty.
	ErrNoAdapters = errors.New("at least one adapter is required")

	// ErrNilAdapter is returned when the adapter list contains a nil entry.
	ErrNilAdapter = errors.New("adapter must not be nil")

	// ErrDuplicateAdapter is returned when two adapters claim the same tag.
	ErrDuplicateAdapter = errors.New("duplicate adapter for tag")
)
