package experiment

import (
	"fmt"
	"strings"
)

// ApplyModifications applies the experiment's modifications to a payload
// document, in declared order. Paths are dot-separated map keys; set
// creates intermediate maps as needed, remove deletes the leaf key, append
// adds to (or creates) a sequence at the leaf. The payload is mutated in
// place; callers that need the pristine payload should copy it first.
func ApplyModifications(payload map[string]any, mods []Modification) error {
	if payload == nil && len(mods) > 0 {
		return fmt.Errorf("no payload to modify")
	}
	for i, m := range mods {
		if err := applyModification(payload, m); err != nil {
			return fmt.Errorf("modifications[%d] (%s %s): %w", i, m.Action, m.Path, err)
		}
	}
	return nil
}

func applyModification(payload map[string]any, m Modification) error {
	parent, leaf, err := walkTo(payload, m.Path, m.Action == ActionSet || m.Action == ActionAppend)
	if err != nil {
		return err
	}

	switch m.Action {
	case ActionSet:
		parent[leaf] = m.Value
	case ActionRemove:
		if parent == nil {
			return nil // Nothing to remove along a missing path.
		}
		delete(parent, leaf)
	case ActionAppend:
		switch existing := parent[leaf].(type) {
		case nil:
			parent[leaf] = []any{m.Value}
		case []any:
			parent[leaf] = append(existing, m.Value)
		default:
			return fmt.Errorf("cannot append to %T", existing)
		}
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}

// walkTo resolves the parent map of the path's leaf segment. With create
// set, missing intermediate maps are created; otherwise a missing segment
// yields a nil parent.
func walkTo(payload map[string]any, path string, create bool) (map[string]any, string, error) {
	segments := strings.Split(path, ".")
	leaf := segments[len(segments)-1]

	current := payload
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg]
		if !ok || next == nil {
			if !create {
				return nil, leaf, nil
			}
			child := make(map[string]any)
			current[seg] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, leaf, fmt.Errorf("path segment %q is %T, not a map", seg, next)
		}
		current = child
	}
	return current, leaf, nil
}
