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


// Package core defines the classroom graph domain model.
//
// The model is a graph of ids: vertices (participants, agents, classrooms,
// messages, audio, text, entitlements, usage policies) carry independent
// identity and lifecycle, while edges relate two vertices by id plus a type
// discriminator. Edges never embed the vertices they reference, so the model
// has no cyclic object graphs and referential integrity is the consumer's
// concern.
//
// # Drafts and declared entities
//
// Entities are produced as drafts by pure constructor functions (NewParticipant,
// NewUsage, ...). A draft has no Meta. Passing a draft through Context.DeclareEntity
// assigns lifecycle metadata (id, timestamps) and yields a declared entity.
// Declaration is idempotent: two drafts declared with the same idempotency key
// in the same context resolve to the same id.
//
// # Tags and versions
//
// Every entity type declares a stable Tag, the key of the physical collection
// that owns it, and a Version, its schema generation. The tag catalog is
// closed: PropsFor rejects tags that are not part of it.
package core
