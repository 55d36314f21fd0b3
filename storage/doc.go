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


// Package storage defines the storage abstraction layer for classgraph.
//
// It decouples the domain model from the physical stores: one Adapter per
// entity tag implements a uniform get/set/remove/query/batch contract, an
// IdentityIndex maps bare ids to their owning tag, and the Repository
// interface presents the single logical store the rest of the system
// programs against.
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the package interfaces
// (storage.Adapter, storage.IdentityIndex), never backend concrete types.
// This keeps consumers swappable between the in-memory reference backend
// and the BadgerDB document backend, and lets tests substitute doubles
// without modification.
//
// # Query semantics
//
// Queries are backend-neutral expression trees (Where) plus multi-key sort
// and page-index pagination. The reference semantics live in this package
// (ApplyQuery); every backend must produce identical observable results:
// same members, same order, same page boundaries, however it executes the
// query physically.
//
// Pagination is page-index, not keyset: page N is the slice
// [N*BatchSize, (N+1)*BatchSize) of the sorted result. Pages are stable only
// while the underlying set is not concurrently mutated between fetches; that
// is a documented limitation, not a defect.
//
// # Batch semantics
//
// Batch is best-effort, never atomic. A partial failure is reported through
// BatchResult.Status and Failures; items already applied are not rolled back
// at this layer. Compensation across multiple writes belongs to package saga.
package storage
