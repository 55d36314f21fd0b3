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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidEntity indicates an entity failed structural validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUnknownTag indicates a tag outside the closed catalog.
	ErrUnknownTag = errors.New("unknown entity tag")

	// ErrNilProps indicates an entity without a props shape.
	ErrNilProps = errors.New("entity props are nil")

	// ErrMissingID indicates declared meta without an id.
	ErrMissingID = errors.New("declared entity has no id")

	// ErrDanglingEdge indicates an edge that does not reference both vertex ids.
	ErrDanglingEdge = errors.New("edge references an empty vertex id")

	// ErrInvalidConsumption indicates a consumption value that fails validation.
	ErrInvalidConsumption = errors.New("invalid consumption")

	// ErrInvalidWindow indicates an unrecognized policy aggregation window.
	ErrInvalidWindow = errors.New("invalid aggregation window")
)
