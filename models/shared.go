package models

// EffectKind names a post-commit side effect.
type EffectKind string

const (
	EffectNotify EffectKind = "notify"
	EffectEmail  EffectKind = "email"
)

// Effect is a best-effort action queued after a booking transition commits.
// Effects never feed back into booking state.
type Effect struct {
	Kind            EffectKind `json:"kind"`
	Recipient       string     `json:"recipient"`
	Type            string     `json:"type,omitempty"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	RelatedResource string     `json:"relatedResource,omitempty"`
	ResourceID      string     `json:"resourceId,omitempty"`
}
