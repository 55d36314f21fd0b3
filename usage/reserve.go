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

package usage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/saga"
)

// Reserver performs the "reserve audio consumption" write: a quota check
// followed by a three-entity write (audio placeholder, usage edge, ownership
// edge) under one compensated unit of work. A fault after a partial write
// rolls the landed entities back before the error is returned.
type Reserver struct {
	store      saga.Store
	authorizer *Authorizer
	logger     *slog.Logger
}

// NewReserver builds a reserver writing through store and deciding quota
// with authorizer.
func NewReserver(store saga.Store, authorizer *Authorizer, logger *slog.Logger) *Reserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reserver{store: store, authorizer: authorizer, logger: logger}
}

// ReserveAudioRequest describes one pending audio recording.
type ReserveAudioRequest struct {
	OwnerID         string
	StorageKey      string
	MimeType        string
	DurationSeconds float64

	// IdempotencyKey, when set, makes a replayed reservation land on the
	// same audio row instead of minting a duplicate.
	IdempotencyKey string
}

// Reservation is the outcome of ReserveAudio. On rejection only Decision is
// populated; on success the three written entities are returned declared.
type Reservation struct {
	Decision  Decision
	Audio     *core.Entity
	Usage     *core.Entity
	Ownership *core.Entity
}

// ReserveAudio authorizes the requested duration and, when allowed, writes
// the presigned audio placeholder with its usage and ownership edges. A
// quota rejection is a Reservation with Decision.Authorized=false and a nil
// error; errors mean infrastructure faults.
func (r *Reserver) ReserveAudio(ctx context.Context, req ReserveAudioRequest) (Reservation, error) {
	decision, err := r.authorizer.Authorize(ctx, Request{
		OwnerID:   req.OwnerID,
		Requested: core.Seconds(req.DurationSeconds),
	})
	if err != nil {
		return Reservation{}, err
	}
	res := Reservation{Decision: decision}
	if !decision.Authorized {
		return res, nil
	}

	unit := saga.New(r.store, r.logger)
	fail := func(step string, err error) (Reservation, error) {
		if rerr := unit.Rollback(ctx); rerr != nil {
			r.logger.Error("reservation rollback suspended", "step", step, "err", rerr)
			return res, fmt.Errorf("%s failed (%w); rollback suspended: %v", step, err, rerr)
		}
		return res, fmt.Errorf("%s failed: %w", step, err)
	}

	draft := core.NewAudio(req.StorageKey, req.MimeType, req.DurationSeconds, core.AudioStatusPresigned)
	var audio *core.Entity
	if req.IdempotencyKey != "" {
		audio, err = unit.SetKeyed(ctx, draft, req.IdempotencyKey)
	} else {
		audio, err = unit.Set(ctx, draft)
	}
	if err != nil {
		return fail("audio placeholder write", err)
	}
	res.Audio = audio

	usage, err := unit.Set(ctx, core.NewUsage(
		decision.Participant, audio.ID(), core.TagAudio, core.Seconds(req.DurationSeconds)))
	if err != nil {
		return fail("usage edge write", err)
	}
	res.Usage = usage

	ownership, err := unit.Set(ctx, core.NewOwnership(
		decision.Participant, audio.ID(), core.TagAudio))
	if err != nil {
		return fail("ownership edge write", err)
	}
	res.Ownership = ownership

	unit.Commit()
	return res, nil
}
