package core

import "time"

// Vertex tags. Vertices have independent identity and lifecycle.
const (
	TagParticipant Tag = "participant"
	TagAgent       Tag = "agent"
	TagClassroom   Tag = "classroom"
	TagMessage     Tag = "message"
	TagAudio       Tag = "audio"
	TagText        Tag = "text"
	TagEntitlement Tag = "entitlement"
	TagUsagePolicy Tag = "usage_policy"
)

// Edge tags. Edges relate two vertices by id and never embed them.
const (
	TagOwnership       Tag = "ownership"
	TagParticipation   Tag = "participation"
	TagOccursIn        Tag = "occurs_in"
	TagRepresentation  Tag = "representation"
	TagSource          Tag = "source"
	TagUsage           Tag = "usage"
	TagGranted         Tag = "granted"
	TagPolicyAggregate Tag = "policy_aggregate"
)

// Tags returns the closed tag catalog in registration order.
func Tags() []Tag {
	return []Tag{
		TagParticipant, TagAgent, TagClassroom, TagMessage,
		TagAudio, TagText, TagEntitlement, TagUsagePolicy,
		TagOwnership, TagParticipation, TagOccursIn, TagRepresentation,
		TagSource, TagUsage, TagGranted, TagPolicyAggregate,
	}
}

// KnownTag returns true if the tag is part of the catalog.
func KnownTag(tag Tag) bool {
	_, ok := propsFactories[tag]
	return ok
}

// PropsFor returns a fresh zero-valued props shape for the tag, suitable as a
// deserialization target. Unknown tags are rejected eagerly.
func PropsFor(tag Tag) (Props, error) {
	factory, ok := propsFactories[tag]
	if !ok {
		return nil, ErrUnknownTag
	}
	return factory(), nil
}

var propsFactories = map[Tag]func() Props{
	TagParticipant:     func() Props { return &ParticipantProps{} },
	TagAgent:           func() Props { return &AgentProps{} },
	TagClassroom:       func() Props { return &ClassroomProps{} },
	TagMessage:         func() Props { return &MessageProps{} },
	TagAudio:           func() Props { return &AudioProps{} },
	TagText:            func() Props { return &TextProps{} },
	TagEntitlement:     func() Props { return &EntitlementProps{} },
	TagUsagePolicy:     func() Props { return &UsagePolicyProps{} },
	TagOwnership:       func() Props { return &OwnershipProps{} },
	TagParticipation:   func() Props { return &ParticipationProps{} },
	TagOccursIn:        func() Props { return &OccursInProps{} },
	TagRepresentation:  func() Props { return &RepresentationProps{} },
	TagSource:          func() Props { return &SourceProps{} },
	TagUsage:           func() Props { return &UsageProps{} },
	TagGranted:         func() Props { return &GrantedProps{} },
	TagPolicyAggregate: func() Props { return &PolicyAggregateProps{} },
}

// ---------------------------------------------------------------------------
// Vertex props
// ---------------------------------------------------------------------------

// ParticipantProps describes a human learner. SubjectID ties the vertex to
// the external authentication subject that owns it.
type ParticipantProps struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale,omitempty"`
}

func (*ParticipantProps) EntityTag() Tag { return TagParticipant }
func (*ParticipantProps) SchemaVersion() int { return 1 }

// AgentProps describes a conversational tutor agent.
type AgentProps struct {
	Name    string `json:"name"`
	Persona string `json:"persona,omitempty"`
}

func (*AgentProps) EntityTag() Tag { return TagAgent }
func (*AgentProps) SchemaVersion() int { return 1 }

// ClassroomProps describes a conversation room between participants and agents.
type ClassroomProps struct {
	Name     string   `json:"name"`
	Language string   `json:"language,omitempty"`
	Level    string   `json:"level,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (*ClassroomProps) EntityTag() Tag { return TagClassroom }
func (*ClassroomProps) SchemaVersion() int { return 1 }

// MessageKind discriminates the payload a message carries.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindAudio MessageKind = "audio"
)

// MessageProps describes one utterance in a classroom. The sender and room
// are related through Source and OccursIn edges, not embedded here.
type MessageProps struct {
	Kind MessageKind `json:"kind"`
	Sent time.Time   `json:"sent_at"`
}

func (*MessageProps) EntityTag() Tag { return TagMessage }
func (*MessageProps) SchemaVersion() int { return 1 }

// AudioStatus tracks an audio record through its write lifecycle.
type AudioStatus string

const (
	// AudioStatusPresigned marks a placeholder reserved ahead of upload.
	AudioStatusPresigned AudioStatus = "presigned"
	// AudioStatusReady marks content that has been uploaded and transcoded.
	AudioStatusReady AudioStatus = "ready"
)

// AudioProps references synthesized or recorded audio content. StorageKey is
// an opaque reference into an external object store; transcoding is not this
// core's concern.
type AudioProps struct {
	StorageKey      string      `json:"storage_key"`
	MimeType        string      `json:"mime_type,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	Status          AudioStatus `json:"status"`
}

func (*AudioProps) EntityTag() Tag { return TagAudio }
func (*AudioProps) SchemaVersion() int { return 1 }

// TextProps holds textual content, e.g. a transcription of an audio resource.
type TextProps struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

func (*TextProps) EntityTag() Tag { return TagText }
func (*TextProps) SchemaVersion() int { return 1 }

// EntitlementProps names a plan a participant can hold.
type EntitlementProps struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

func (*EntitlementProps) EntityTag() Tag { return TagEntitlement }
func (*EntitlementProps) SchemaVersion() int { return 1 }

// Window is the aggregation window of a usage policy.
type Window string

const (
	PerDay   Window = "per_day"
	PerWeek  Window = "per_week"
	PerMonth Window = "per_month"
)

// Valid returns true if the window is recognized.
func (w Window) Valid() bool {
	switch w {
	case PerDay, PerWeek, PerMonth:
		return true
	}
	return false
}

// UsagePolicyProps caps consumption of one unit within one aggregation window.
type UsagePolicyProps struct {
	Unit           string  `json:"unit"`
	Window         Window  `json:"window"`
	MaxConsumption float64 `json:"max_consumption"`
}

func (*UsagePolicyProps) EntityTag() Tag { return TagUsagePolicy }
func (*UsagePolicyProps) SchemaVersion() int { return 1 }

// ---------------------------------------------------------------------------
// Edge props
// ---------------------------------------------------------------------------

// OwnershipProps records that Source owns Target. TargetType discriminates
// the referenced vertex so consumers can resolve it without probing.
type OwnershipProps struct {
	Source     ID  `json:"source"`
	Target     ID  `json:"target"`
	TargetType Tag `json:"target_type"`
}

func (*OwnershipProps) EntityTag() Tag { return TagOwnership }
func (*OwnershipProps) SchemaVersion() int { return 1 }

// ParticipationProps enrolls a participant in a classroom with a role.
type ParticipationProps struct {
	Classroom   ID     `json:"classroom"`
	Participant ID     `json:"participant"`
	Role        string `json:"role"`
}

func (*ParticipationProps) EntityTag() Tag { return TagParticipation }
func (*ParticipationProps) SchemaVersion() int { return 1 }

// OccursInProps places a message inside a classroom.
type OccursInProps struct {
	Message   ID `json:"message"`
	Classroom ID `json:"classroom"`
}

func (*OccursInProps) EntityTag() Tag { return TagOccursIn }
func (*OccursInProps) SchemaVersion() int { return 1 }

// RepresentationProps links a text rendering to the resource it represents,
// e.g. a transcription to its audio.
type RepresentationProps struct {
	Text         ID  `json:"text"`
	Resource     ID  `json:"resource"`
	ResourceType Tag `json:"resource_type"`
}

func (*RepresentationProps) EntityTag() Tag { return TagRepresentation }
func (*RepresentationProps) SchemaVersion() int { return 1 }

// SourceProps links a message to the content it was produced from.
type SourceProps struct {
	Message    ID  `json:"message"`
	Source     ID  `json:"source"`
	SourceType Tag `json:"source_type"`
}

func (*SourceProps) EntityTag() Tag { return TagSource }
func (*SourceProps) SchemaVersion() int { return 1 }

// UsageProps records that Source consumed Target, with how much.
type UsageProps struct {
	Source      ID          `json:"source"`
	Target      ID          `json:"target"`
	TargetType  Tag         `json:"target_type"`
	Consumption Consumption `json:"consumption"`
}

func (*UsageProps) EntityTag() Tag { return TagUsage }
func (*UsageProps) SchemaVersion() int { return 1 }

// GrantedProps gives a participant an entitlement until ExpiresAt. When a
// participant holds several active grants, only the highest-priority one is
// evaluated.
type GrantedProps struct {
	Participant ID        `json:"participant"`
	Entitlement ID        `json:"entitlement"`
	ExpiresAt   time.Time `json:"expires_at"`
	Priority    int       `json:"priority"`
}

func (*GrantedProps) EntityTag() Tag { return TagGranted }
func (*GrantedProps) SchemaVersion() int { return 1 }

// PolicyAggregateProps attaches a usage policy to an entitlement.
type PolicyAggregateProps struct {
	Entitlement ID `json:"entitlement"`
	Policy      ID `json:"policy"`
}

func (*PolicyAggregateProps) EntityTag() Tag { return TagPolicyAggregate }
func (*PolicyAggregateProps) SchemaVersion() int { return 1 }

// ---------------------------------------------------------------------------
// Draft constructors. Pure, no identity assigned.
// ---------------------------------------------------------------------------

// NewParticipant creates a participant draft for an external subject.
func NewParticipant(subjectID, displayName, locale string) *Entity {
	return &Entity{Props: &ParticipantProps{SubjectID: subjectID, DisplayName: displayName, Locale: locale}}
}

// NewAgent creates a tutor agent draft.
func NewAgent(name, persona string) *Entity {
	return &Entity{Props: &AgentProps{Name: name, Persona: persona}}
}

// NewClassroom creates a classroom draft.
func NewClassroom(name, language, level string) *Entity {
	return &Entity{Props: &ClassroomProps{Name: name, Language: language, Level: level}}
}

// NewClassroomTagged creates a classroom draft with capacity and topic tags.
func NewClassroomTagged(name string, capacity int, tags ...string) *Entity {
	return &Entity{Props: &ClassroomProps{Name: name, Capacity: capacity, Tags: tags}}
}

// NewMessage creates a message draft.
func NewMessage(kind MessageKind, sent time.Time) *Entity {
	return &Entity{Props: &MessageProps{Kind: kind, Sent: sent.UTC()}}
}

// NewAudio creates an audio draft.
func NewAudio(storageKey, mimeType string, durationSeconds float64, status AudioStatus) *Entity {
	return &Entity{Props: &AudioProps{
		StorageKey:      storageKey,
		MimeType:        mimeType,
		DurationSeconds: durationSeconds,
		Status:          status,
	}}
}

// NewText creates a text draft.
func NewText(content, language string) *Entity {
	return &Entity{Props: &TextProps{Content: content, Language: language}}
}

// NewEntitlement creates an entitlement draft.
func NewEntitlement(name, kind string) *Entity {
	return &Entity{Props: &EntitlementProps{Name: name, Kind: kind}}
}

// NewUsagePolicy creates a usage policy draft.
func NewUsagePolicy(unit string, window Window, maxConsumption float64) *Entity {
	return &Entity{Props: &UsagePolicyProps{Unit: unit, Window: window, MaxConsumption: maxConsumption}}
}

// NewOwnership creates an ownership edge draft.
func NewOwnership(source, target ID, targetType Tag) *Entity {
	return &Entity{Props: &OwnershipProps{Source: source, Target: target, TargetType: targetType}}
}

// NewParticipation creates a participation edge draft.
func NewParticipation(classroom, participant ID, role string) *Entity {
	return &Entity{Props: &ParticipationProps{Classroom: classroom, Participant: participant, Role: role}}
}

// NewOccursIn creates an occurs-in edge draft.
func NewOccursIn(message, classroom ID) *Entity {
	return &Entity{Props: &OccursInProps{Message: message, Classroom: classroom}}
}

// NewRepresentation creates a representation edge draft.
func NewRepresentation(text, resource ID, resourceType Tag) *Entity {
	return &Entity{Props: &RepresentationProps{Text: text, Resource: resource, ResourceType: resourceType}}
}

// NewSource creates a source edge draft.
func NewSource(message, source ID, sourceType Tag) *Entity {
	return &Entity{Props: &SourceProps{Message: message, Source: source, SourceType: sourceType}}
}

// NewUsage creates a usage edge draft.
func NewUsage(source, target ID, targetType Tag, consumption Consumption) *Entity {
	return &Entity{Props: &UsageProps{Source: source, Target: target, TargetType: targetType, Consumption: consumption}}
}

// NewGranted creates a granted edge draft.
func NewGranted(participant, entitlement ID, expiresAt time.Time, priority int) *Entity {
	return &Entity{Props: &GrantedProps{
		Participant: participant,
		Entitlement: entitlement,
		ExpiresAt:   expiresAt.UTC(),
		Priority:    priority,
	}}
}

// NewPolicyAggregate creates a policy-aggregate edge draft.
func NewPolicyAggregate(entitlement, policy ID) *Entity {
	return &Entity{Props: &PolicyAggregateProps{Entitlement: entitlement, Policy: policy}}
}
