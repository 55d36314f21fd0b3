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

import "fmt"

// ValidateEntity checks an entity structurally: a known tag, a props shape,
// and for declared entities a non-empty id. Edge shapes additionally require
// both referenced vertex ids. It is a pure check and never mutates.
//
// Referential integrity of edge targets is deliberately NOT validated here;
// edges store bare ids and the store has no cross-collection constraints.
func ValidateEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}
	if e.Props == nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrNilProps)
	}
	if !KnownTag(e.Tag()) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEntity, ErrUnknownTag, e.Tag())
	}
	if e.Meta != nil && e.Meta.ID.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrMissingID)
	}
	if err := validateProps(e.Props); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	return nil
}

func validateProps(p Props) error {
	switch props := p.(type) {
	case *OwnershipProps:
		return requireEdgeIDs(props.Source, props.Target)
	case *ParticipationProps:
		return requireEdgeIDs(props.Classroom, props.Participant)
	case *OccursInProps:
		return requireEdgeIDs(props.Message, props.Classroom)
	case *RepresentationProps:
		return requireEdgeIDs(props.Text, props.Resource)
	case *SourceProps:
		return requireEdgeIDs(props.Message, props.Source)
	case *UsageProps:
		if err := requireEdgeIDs(props.Source, props.Target); err != nil {
			return err
		}
		return ValidateConsumption(props.Consumption)
	case *GrantedProps:
		return requireEdgeIDs(props.Participant, props.Entitlement)
	case *PolicyAggregateProps:
		return requireEdgeIDs(props.Entitlement, props.Policy)
	case *UsagePolicyProps:
		if !props.Window.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidWindow, props.Window)
		}
		if props.Unit == "" {
			return fmt.Errorf("%w: policy unit is empty", ErrInvalidEntity)
		}
		return nil
	default:
		return nil
	}
}

func requireEdgeIDs(ids ...ID) error {
	for _, id := range ids {
		if id.IsZero() {
			return ErrDanglingEdge
		}
	}
	return nil
}

// ValidateConsumption checks a consumption value object.
//
// Validation rules:
//   - Unit must not be empty
//   - Value and NormalizationFactor must be non-negative
//   - RawValue must equal Value * NormalizationFactor at the stated precision
func ValidateConsumption(c Consumption) error {
	if c.Unit == "" {
		return fmt.Errorf("%w: unit is empty", ErrInvalidConsumption)
	}
	if c.Value < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidConsumption)
	}
	if c.NormalizationFactor < 0 {
		return fmt.Errorf("%w: negative normalization factor", ErrInvalidConsumption)
	}
	if want := roundTo(c.Value*c.NormalizationFactor, c.Precision); c.RawValue != want {
		return fmt.Errorf("%w: raw value %v does not normalize from %v", ErrInvalidConsumption, c.RawValue, c.Value)
	}
	return nil
}
