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

// Package usage enforces time-windowed consumption quotas over the classroom
// graph. Authorization walks participant, grant, entitlement and policy
// vertices through the repository, sums the usage edges inside each policy's
// aggregation window, and yields a typed verdict. Domain rejections are
// Decision values, not errors; errors are reserved for infrastructure faults.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/classgraph/core"
	"github.com/poiesic/classgraph/storage"
)

// Repository is the slice of the federated repository the authorizer reads
// through.
type Repository interface {
	Get(ctx context.Context, id core.ID) (*core.Entity, error)
	QueryTag(ctx context.Context, tag core.Tag, q storage.Query) ([]*core.Entity, error)
}

// Reason explains a verdict.
type Reason string

const (
	ReasonAuthorized     Reason = "authorized"
	ReasonNoParticipant  Reason = "no participant"
	ReasonNoEntitlement  Reason = "no active entitlement"
	ReasonNoPolicies     Reason = "no active policies"
	ReasonPolicyExceeded Reason = "policy exceeded"
)

// PolicyReport is one policy's quota computation at decision time.
type PolicyReport struct {
	Policy      core.ID
	Unit        string
	Window      core.Window
	WindowStart time.Time
	Max         float64
	Existing    float64
	Requested   float64
	Exceeded    bool
}

// Request asks whether owner may consume the given amount now.
type Request struct {
	OwnerID   string
	Requested core.Consumption
}

// Decision is the verdict for a Request. When rejected for quota, Policies
// still carries every evaluated computation so the caller can report which
// ones failed.
type Decision struct {
	Authorized  bool
	Reason      Reason
	Participant core.ID
	Entitlement core.ID
	Policies    []PolicyReport
}

// Authorizer computes quota decisions. Window boundaries are taken at local
// midnight in the configured location.
type Authorizer struct {
	repo     Repository
	location *time.Location
	clock    func() time.Time
	logger   *slog.Logger
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithLocation sets the timezone used for window boundaries.
// Default is time.Local.
func WithLocation(loc *time.Location) AuthorizerOption {
	return func(a *Authorizer) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthorizer builds an authorizer over repo.
func NewAuthorizer(repo Repository, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		repo:     repo,
		location: time.Local,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// windowStart returns the inclusive lower bound of w: local midnight today
// for per_day, local midnight 7 or 30 days back for per_week and per_month.
func (a *Authorizer) windowStart(w core.Window, now time.Time) time.Time {
	local := now.In(a.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	switch w {
	case core.PerWeek:
		return midnight.AddDate(0, 0, -7)
	case core.PerMonth:
		return midnight.AddDate(0, 0, -30)
	default:
		return midnight
	}
}

func reject(reason Reason, d Decision) Decision {
	d.Authorized = false
	d.Reason = reason
	return d
}

// Authorize decides req. All-or-nothing: every policy applicable to the
// requested unit must leave headroom, or the whole request is rejected.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (Decision, error) {
	now := a.clock()
	var d Decision

	participant, err := a.findParticipant(ctx, req.OwnerID)
	if err != nil {
		return d, err
	}
	if participant == nil {
		return reject(ReasonNoParticipant, d), nil
	}
	d.Participant = participant.ID()

	grant, err := a.activeGrant(ctx, participant.ID(), now)
	if err != nil {
		return d, err
	}
	if grant == nil {
		return reject(ReasonNoEntitlement, d), nil
	}

	entitlement, err := a.repo.Get(ctx, grant.Entitlement)
	if err != nil {
		return d, err
	}
	if entitlement == nil || entitlement.Tag() != core.TagEntitlement {
		return reject(ReasonNoEntitlement, d), nil
	}
	d.Entitlement = entitlement.ID()

	policies, err := a.attachedPolicies(ctx, entitlement.ID())
	if err != nil {
		return d, err
	}
	if len(policies) == 0 {
		return reject(ReasonNoPolicies, d), nil
	}

	exceeded := false
	for _, policy := range policies {
		props := policy.Props.(*core.UsagePolicyProps)
		if props.Unit != req.Requested.Unit {
			continue
		}
		report, err := a.evaluate(ctx, d.Participant, policy.ID(), *props, req.Requested, now)
		if err != nil {
			return d, err
		}
		exceeded = exceeded || report.Exceeded
		d.Policies = append(d.Policies, report)
	}
	if len(d.Policies) == 0 {
		// No policy measures the requested unit. Fail closed rather than
		// treating an unmeasured unit as unlimited.
		return reject(ReasonNoPolicies, d), nil
	}
	if exceeded {
		return reject(ReasonPolicyExceeded, d), nil
	}

	d.Authorized = true
	d.Reason = ReasonAuthorized
	return d, nil
}

func (a *Authorizer) findParticipant(ctx context.Context, ownerID string) (*core.Entity, error) {
	matches, err := a.repo.QueryTag(ctx, core.TagParticipant,
		storage.NewQuery().FilterBy(storage.Field("subject_id").Eq(ownerID)).Build())
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// activeGrant selects the unexpired grant with the highest priority. Ties on
// priority go to the later expiry, then the larger id, so the choice is
// deterministic under equal grants.
func (a *Authorizer) activeGrant(ctx context.Context, participant core.ID, now time.Time) (*core.GrantedProps, error) {
	grants, err := a.repo.QueryTag(ctx, core.TagGranted,
		storage.NewQuery().
			FilterBy(storage.And(
				storage.Field("participant").Eq(participant),
				storage.Field("expires_at").Gt(now),
			)).
			Build())
	if err != nil {
		return nil, err
	}

	var best *core.GrantedProps
	var bestID core.ID
	for _, g := range grants {
		props := g.Props.(*core.GrantedProps)
		if best == nil ||
			props.Priority > best.Priority ||
			(props.Priority == best.Priority && props.ExpiresAt.After(best.ExpiresAt)) ||
			(props.Priority == best.Priority && props.ExpiresAt.Equal(best.ExpiresAt) && g.ID() > bestID) {
			best = props
			bestID = g.ID()
		}
	}
	return best, nil
}

func (a *Authorizer) attachedPolicies(ctx context.Context, entitlement core.ID) ([]*core.Entity, error) {
	aggregates, err := a.repo.QueryTag(ctx, core.TagPolicyAggregate,
		storage.NewQuery().FilterBy(storage.Field("entitlement").Eq(entitlement)).Build())
	if err != nil {
		return nil, err
	}

	policies := make([]*core.Entity, 0, len(aggregates))
	for _, agg := range aggregates {
		props := agg.Props.(*core.PolicyAggregateProps)
		policy, err := a.repo.Get(ctx, props.Policy)
		if err != nil {
			return nil, err
		}
		if policy == nil || policy.Tag() != core.TagUsagePolicy {
			a.logger.Warn("policy aggregate points at a missing policy",
				"aggregate", agg.ID(), "policy", props.Policy)
			continue
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// evaluate sums the participant's usage edges in the policy's unit and
// window, then checks strict headroom: existing + requested < max.
func (a *Authorizer) evaluate(
	ctx context.Context,
	participant core.ID,
	policyID core.ID,
	policy core.UsagePolicyProps,
	requested core.Consumption,
	now time.Time,
) (PolicyReport, error) {
	start := a.windowStart(policy.Window, now)

	edges, err := a.repo.QueryTag(ctx, core.TagUsage,
		storage.NewQuery().
			FilterBy(storage.And(
				storage.And(
					storage.Field("source").Eq(participant),
					storage.Field("consumption.unit").Eq(policy.Unit),
				),
				storage.Field("created_at").Gte(start),
			)).
			Build())
	if err != nil {
		return PolicyReport{}, err
	}

	var existing float64
	for _, edge := range edges {
		existing += edge.Props.(*core.UsageProps).Consumption.Value
	}

	return PolicyReport{
		Policy:      policyID,
		Unit:        policy.Unit,
		Window:      policy.Window,
		WindowStart: start,
		Max:         policy.MaxConsumption,
		Existing:    existing,
		Requested:   requested.Value,
		Exceeded:    existing+requested.Value >= policy.MaxConsumption,
	}, nil
}
