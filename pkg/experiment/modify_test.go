package experiment

import (
	"reflect"
	"testing"
)

func TestApplyModifications(t *testing.T) {
	payload := map[string]any{
		"event_type": "KafkaBrokerSample",
		"attributes": map[string]any{
			"clusterName": "kafka-dev",
			"stale":       "remove-me",
		},
	}

	mods := []Modification{
		{Action: ActionSet, Path: "attributes.provider", Value: "AwsMskBroker"},
		{Action: ActionSet, Path: "tags.env.region", Value: "us-east-1"},
		{Action: ActionRemove, Path: "attributes.stale"},
		{Action: ActionAppend, Path: "attributes.topics", Value: "orders"},
		{Action: ActionAppend, Path: "attributes.topics", Value: "payments"},
	}
	if err := ApplyModifications(payload, mods); err != nil {
		t.Fatalf("ApplyModifications: %v", err)
	}

	attrs := payload["attributes"].(map[string]any)
	if attrs["provider"] != "AwsMskBroker" {
		t.Errorf("set failed: %v", attrs["provider"])
	}
	if _, ok := attrs["stale"]; ok {
		t.Error("remove failed")
	}
	if !reflect.DeepEqual(attrs["topics"], []any{"orders", "payments"}) {
		t.Errorf("append failed: %#v", attrs["topics"])
	}
	env := payload["tags"].(map[string]any)["env"].(map[string]any)
	if env["region"] != "us-east-1" {
		t.Errorf("set did not create intermediate maps: %#v", payload["tags"])
	}
}

func TestApplyModificationsRemoveMissingPath(t *testing.T) {
	payload := map[string]any{"a": 1}
	err := ApplyModifications(payload, []Modification{
		{Action: ActionRemove, Path: "missing.nested.key"},
	})
	if err != nil {
		t.Errorf("removing a missing path should be a no-op, got %v", err)
	}
}

func TestApplyModificationsErrors(t *testing.T) {
	payload := map[string]any{"scalar": "x"}

	err := ApplyModifications(payload, []Modification{
		{Action: ActionSet, Path: "scalar.nested", Value: 1},
	})
	if err == nil {
		t.Error("setting through a scalar should fail")
	}

	err = ApplyModifications(payload, []Modification{
		{Action: ActionAppend, Path: "scalar", Value: 1},
	})
	if err == nil {
		t.Error("appending to a scalar should fail")
	}

	if err := ApplyModifications(nil, []Modification{{Action: ActionSet, Path: "a", Value: 1}}); err == nil {
		t.Error("modifying a nil payload should fail")
	}
}

func TestApplyModificationsOrder(t *testing.T) {
	payload := map[string]any{}
	mods := []Modification{
		{Action: ActionSet, Path: "key", Value: "first"},
		{Action: ActionSet, Path: "key", Value: "second"},
	}
	if err := ApplyModifications(payload, mods); err != nil {
		t.Fatalf("ApplyModifications: %v", err)
	}
	if payload["key"] != "second" {
		t.Errorf("modifications not applied in declared order: %v", payload["key"])
	}
}
