package experiment

import (
	"fmt"
	"strings"
)

// validate checks a decoded Definition against the document schema. Rules
// run in a fixed order: top-level required fields first, then the checks
// structure and type whitelist, then modification actions and their
// conditional field requirements. The first violated rule is always the
// first entry of the result.
func (l *Loader) validate(def Definition) *ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(def.Name) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field: "name", Message: "required",
		})
	}
	if strings.TrimSpace(def.Description) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field: "description", Message: "required",
		})
	}

	if len(def.Verification.Checks) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field: "verification.checks", Message: "required and must be non-empty",
		})
	}
	for i, c := range def.Verification.Checks {
		if c.Type == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("verification.checks[%d].type", i),
				Message: "required",
			})
		} else if !l.checkTypes[c.Type] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("verification.checks[%d].type", i),
				Message: fmt.Sprintf("unknown check type %q", c.Type),
			})
		}
	}

	for i, m := range def.Modifications {
		switch m.Action {
		case ActionSet, ActionRemove, ActionAppend:
		case "":
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("modifications[%d].action", i),
				Message: "required",
			})
			continue
		default:
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("modifications[%d].action", i),
				Message: fmt.Sprintf("unknown action %q (expected set, remove or append)", m.Action),
			})
			continue
		}

		// Removal still requires a target path; a value is required only
		// for set and append.
		if m.Path == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("modifications[%d].path", i),
				Message: "required",
			})
		}
		if m.Value == nil && m.Action != ActionRemove {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("modifications[%d].value", i),
				Message: fmt.Sprintf("required for action %q", m.Action),
			})
		}
	}

	return &result
}
