package component

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdentityKey uniquely scopes instance numbering: the same tag on the same
// drawing with the same discriminating attribute (size for components, weld
// type for welds) is one physical population, however many rows describe it.
type IdentityKey struct {
	DrawingID uuid.UUID
	TagID     string
	Attribute string
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.DrawingID, k.TagID, k.Attribute)
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

type Category string

const (
	CategorySpool     Category = "spool"
	CategoryValve     Category = "valve"
	CategorySupport   Category = "support"
	CategoryGasket    Category = "gasket"
	CategoryFlange    Category = "flange"
	CategoryFitting   Category = "fitting"
	CategoryFieldWeld Category = "field_weld"
	CategoryOther     Category = "other"
)

// Instance is one physically distinct, individually tracked occurrence of a
// component or weld. InstanceNumber is 1-based and unique within the key's
// scope; it is never reused or renumbered by later imports.
type Instance struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Key            IdentityKey
	InstanceNumber int
	TotalOnKey     int
	Category       Category
	Spec           string
	Material       string
	Description    string
	Area           string
	System         string
	TestPackage    string
	TemplateID     uuid.UUID
	Status         Status
	CompletionPct  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayLabel is the bare tag when the key has a single instance, otherwise
// "tag (n of total)".
func (i *Instance) DisplayLabel() string {
	if i.TotalOnKey <= 1 {
		return i.Key.TagID
	}
	return fmt.Sprintf("%s (%d of %d)", i.Key.TagID, i.InstanceNumber, i.TotalOnKey)
}

// ExistingState is what an import run needs to know about a key's persisted
// population before numbering new instances.
type ExistingState struct {
	MaxInstance int
	Count       int
}

// Repository is the store surface the import engine reconciles against.
type Repository interface {
	// ExistingStates returns per-key max instance number and count for the
	// project in context. Keys with no persisted instances are absent.
	ExistingStates(ctx context.Context, keys []IdentityKey) (map[IdentityKey]ExistingState, error)
	// LockKeyScopes re-reads ExistingStates inside the current transaction
	// with the key scopes locked for the rest of the transaction.
	LockKeyScopes(ctx context.Context, keys []IdentityKey) (map[IdentityKey]ExistingState, error)
	// InsertBatch writes instances within the current transaction.
	InsertBatch(ctx context.Context, instances []*Instance) error
	// UpdateDescriptive updates descriptive fields on all persisted
	// instances of a key (update-existing mode; never touches numbering).
	UpdateDescriptive(ctx context.Context, key IdentityKey, inst *Instance) (int64, error)
}
