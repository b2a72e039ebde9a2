package milestone

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTemplate_Materialize(t *testing.T) {
	tpl := &Template{
		ID:          uuid.New(),
		Name:        "Standard Piping",
		Definitions: DefaultDefinitions(),
	}
	instanceID := uuid.New()

	records := tpl.Materialize(instanceID)
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, r := range records {
		if r.InstanceID != instanceID {
			t.Errorf("record %d has wrong instance id", i)
		}
		if r.Completed {
			t.Errorf("record %d should start not-completed", i)
		}
		if !r.Value.IsZero() {
			t.Errorf("record %d should start with zero value", i)
		}
		if r.Order != i+1 {
			t.Errorf("record %d order = %d", i, r.Order)
		}
	}
}

func TestDefaultDefinitions_WeightsSumTo100(t *testing.T) {
	sum := decimal.Zero
	for _, def := range DefaultDefinitions() {
		sum = sum.Add(def.Weight)
	}
	if !sum.Equal(decimal.NewFromInt(100)) {
		t.Errorf("default weights should sum to 100, got %s", sum)
	}
}
