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


package badger

import (
	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// NewMemoryStore creates an in-memory backend with one adapter per catalog
// tag and an identity index, for testing. Caller must close the backend when
// done.
func NewMemoryStore() (*Backend, map[core.Tag]storage.Adapter, storage.IdentityIndex, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	adapters := make(map[core.Tag]storage.Adapter, len(core.Tags()))
	for _, tag := range core.Tags() {
		adapter, err := NewAdapter(backend, tag)
		if err != nil {
			backend.Close()
			return nil, nil, nil, err
		}
		adapters[tag] = adapter
	}

	return backend, adapters, NewIndex(backend), nil
}
