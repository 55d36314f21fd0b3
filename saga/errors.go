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

package saga

import "errors"

var (
	// ErrUnknownCompensation is returned by Rollback for a log entry whose
	// kind it does not recognize.
	ErrUnknownCompensation = errors.New("unknown compensation kind")

	// ErrKeyedWritesUnsupported is returned by SetKeyed when the underlying
	// store has no idempotency-key entry point.
	ErrKeyedWritesUnsupported = errors.New("store does not support keyed writes")
)
