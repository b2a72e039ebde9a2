package component

import (
	"testing"

	"github.com/google/uuid"
)

func TestInstance_DisplayLabel(t *testing.T) {
	key := IdentityKey{DrawingID: uuid.New(), TagID: "VLV-104", Attribute: `2"`}

	single := &Instance{Key: key, InstanceNumber: 1, TotalOnKey: 1}
	if got := single.DisplayLabel(); got != "VLV-104" {
		t.Errorf("single instance label should be the bare tag, got %q", got)
	}

	second := &Instance{Key: key, InstanceNumber: 2, TotalOnKey: 5}
	if got := second.DisplayLabel(); got != "VLV-104 (2 of 5)" {
		t.Errorf("unexpected label: %q", got)
	}
}

func TestIdentityKey_String(t *testing.T) {
	id := uuid.MustParse("f47ac10b-58cc-0372-8567-0e02b2c3d479")
	key := IdentityKey{DrawingID: id, TagID: "FW-001", Attribute: "butt"}
	want := "f47ac10b-58cc-0372-8567-0e02b2c3d479|FW-001|butt"
	if key.String() != want {
		t.Errorf("expected %q, got %q", want, key.String())
	}
}
