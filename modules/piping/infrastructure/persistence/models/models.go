package models

import (
	"database/sql"
	"time"
)

type Drawing struct {
	ID             string
	ProjectID      string
	Number         string
	Revision       string
	Title          string
	Spec           string
	Material       string
	PressureRating sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ComponentInstance struct {
	ID             string
	ProjectID      string
	DrawingID      string
	TagID          string
	Attribute      string
	InstanceNumber int
	TotalOnKey     int
	Category       string
	Spec           string
	Material       string
	Description    string
	Area           string
	System         string
	TestPackage    string
	TemplateID     sql.NullString
	Status         string
	CompletionPct  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MilestoneTemplate struct {
	ID        string
	ProjectID sql.NullString
	Name      string
	IsDefault bool
	CreatedAt time.Time
}

type MilestoneDefinition struct {
	TemplateID string
	Name       string
	SortOrder  int
	Weight     string
	Workflow   string
}

type MilestoneRecord struct {
	ID         string
	InstanceID string
	Name       string
	SortOrder  int
	Weight     string
	Workflow   string
	Completed  bool
	Value      string
}
