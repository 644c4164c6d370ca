package experiment

import "time"

// Definition is a parsed, validated experiment document. It describes one
// telemetry-transformation scenario: an optional sample payload, an ordered
// list of modifications applied to it before verification, and the
// verification checks evaluated against the telemetry backend afterwards.
type Definition struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	Payload       map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
	Modifications []Modification `yaml:"modifications,omitempty" json:"modifications,omitempty"`
	Verification  Verification   `yaml:"verification" json:"verification"`

	// Metadata is derived at load time, never author-supplied.
	Metadata Metadata `yaml:"-" json:"metadata"`
}

// Verification groups the ordered checks of an experiment.
type Verification struct {
	Checks []Check `yaml:"checks" json:"checks"`
}

// Check is one assertion to evaluate against the telemetry backend.
// Only Type is validated at parse time; the remaining fields are
// check-type-specific and interpreted by the executor.
type Check struct {
	Type      string `yaml:"type" json:"type"`
	Query     string `yaml:"query,omitempty" json:"query,omitempty"`
	EventType string `yaml:"event_type,omitempty" json:"event_type,omitempty"`
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Field     string `yaml:"field,omitempty" json:"field,omitempty"`
	Operator  string `yaml:"operator,omitempty" json:"operator,omitempty"`
	Expected  any    `yaml:"expected,omitempty" json:"expected,omitempty"`
	Threshold any    `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Message   string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Modification is one pre-verification edit of the experiment payload.
type Modification struct {
	Action string `yaml:"action" json:"action"`
	Path   string `yaml:"path" json:"path"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Metadata is attached by the loader after a successful parse.
type Metadata struct {
	SourcePath string    `json:"source_path"`
	Phase      Phase     `json:"phase"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Phase is advisory grouping extracted from a phaseNNN-<name> path segment.
type Phase struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Modification actions.
const (
	ActionSet    = "set"
	ActionRemove = "remove"
	ActionAppend = "append"
)

// DefaultCheckTypes is the recognized set of verification-check kinds.
// The whitelist is configuration, not business logic: callers may replace
// it per loader via WithCheckTypes.
var DefaultCheckTypes = []string{
	"entity-exists",
	"event-exists",
	"metric-threshold",
	"count-comparison",
	"attribute-present",
}
