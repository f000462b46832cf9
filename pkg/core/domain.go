// Package core holds the domain types and storage contracts shared by the
// notetaker components.
package core

import (
	"slices"
	"time"
)

// Note is the central entity of the domain.
type Note struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
	ProjectID string    `json:"projectId" yaml:"projectId"`
	SubjectID string    `json:"subjectId" yaml:"subjectId"`

	// Fields owned by the enrichment pipeline.
	Summary         string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	DetailedSummary string     `json:"detailedSummary,omitempty" yaml:"detailedSummary,omitempty"`
	Todos           []string   `json:"todos,omitempty" yaml:"todos,omitempty"`
	KeyPeople       []string   `json:"keyPeople,omitempty" yaml:"keyPeople,omitempty"`
	Tags            []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Decisions       []string   `json:"decisions,omitempty" yaml:"decisions,omitempty"`
	GraphData       *GraphData `json:"graphData,omitempty" yaml:"graphData,omitempty"`

	IsArchived    bool         `json:"isArchived,omitempty" yaml:"isArchived,omitempty"`
	IsTemplate    bool         `json:"isTemplate,omitempty" yaml:"isTemplate,omitempty"`
	DisableAiSync bool         `json:"disableAiSync,omitempty" yaml:"disableAiSync,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// RecordKey implements typed.Entity.
func (n Note) RecordKey() string { return n.ID }

// Clone returns a deep copy so callers can mutate slices without aliasing.
func (n Note) Clone() Note {
	c := n
	c.Todos = slices.Clone(n.Todos)
	c.KeyPeople = slices.Clone(n.KeyPeople)
	c.Tags = slices.Clone(n.Tags)
	c.Decisions = slices.Clone(n.Decisions)
	c.Attachments = slices.Clone(n.Attachments)
	if n.GraphData != nil {
		g := *n.GraphData
		g.Data = slices.Clone(n.GraphData.Data)
		c.GraphData = &g
	}
	return c
}

// Attachment is a binary payload carried inline as a data URL.
type Attachment struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	MimeType string `json:"mimeType" yaml:"mimeType"`
	Data     string `json:"data" yaml:"data"`
}

// GraphType enumerates the chart kinds a processor may return.
type GraphType string

const (
	GraphBar  GraphType = "bar"
	GraphLine GraphType = "line"
	GraphPie  GraphType = "pie"
)

// GraphData is chart data extracted from a note.
type GraphData struct {
	Type   GraphType    `json:"type" yaml:"type"`
	Data   []GraphPoint `json:"data" yaml:"data"`
	Config GraphConfig  `json:"config" yaml:"config"`
}

type GraphPoint struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

type GraphConfig struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	XAxisLabel string `json:"xAxisLabel,omitempty" yaml:"xAxisLabel,omitempty"`
	YAxisLabel string `json:"yAxisLabel,omitempty" yaml:"yAxisLabel,omitempty"`
}

// Project is a top-level category. Its subjects live inside the project record.
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Subjects    []Subject `json:"subjects" yaml:"subjects"`
}

func (p Project) RecordKey() string { return p.ID }

// Clone returns a copy with its own subject slice.
func (p Project) Clone() Project {
	c := p
	c.Subjects = slices.Clone(p.Subjects)
	if c.Subjects == nil {
		c.Subjects = []Subject{}
	}
	return c
}

// Subject returns the subject with the given id.
func (p Project) Subject(id string) (Subject, bool) {
	for _, s := range p.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

type Subject struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// NoteVersion is an immutable snapshot of a note taken before a write.
type NoteVersion struct {
	ID      string    `json:"id" yaml:"id"`
	NoteID  string    `json:"noteId" yaml:"noteId"`
	Title   string    `json:"title" yaml:"title"`
	Content string    `json:"content" yaml:"content"`
	SavedAt time.Time `json:"savedAt" yaml:"savedAt"`
}

func (v NoteVersion) RecordKey() string { return v.ID }

// SettingsID is the fixed key of the settings singleton.
const SettingsID = "main_settings"

// Theme values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Performance profiles.
const (
	ProfileMaxQuality = "max-quality"
	ProfileBalanced   = "balanced"
	ProfileFast       = "fast"
)

// Settings is the application-wide configuration record.
type Settings struct {
	ID                 string `json:"id" yaml:"id"`
	UILanguage         string `json:"uiLanguage" yaml:"uiLanguage"`
	AILanguage         string `json:"aiLanguage" yaml:"aiLanguage"`
	APIKey             string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Theme              string `json:"theme" yaml:"theme"`
	PerformanceProfile string `json:"performanceProfile" yaml:"performanceProfile"`
}

func (s Settings) RecordKey() string { return s.ID }

// DefaultSettings returns the first-run settings.
func DefaultSettings() Settings {
	return Settings{
		ID:                 SettingsID,
		UILanguage:         "en",
		AILanguage:         "English",
		Theme:              ThemeDark,
		PerformanceProfile: ProfileMaxQuality,
	}
}

// HasCredential reports whether the external service is configured.
func (s Settings) HasCredential() bool { return s.APIKey != "" }

// Snapshot is the export/import unit: every durable collection as plain records.
type Snapshot struct {
	Notes    []Note        `json:"notes" yaml:"notes"`
	Projects []Project     `json:"projects" yaml:"projects"`
	Settings *Settings     `json:"settings,omitempty" yaml:"settings,omitempty"`
	Versions []NoteVersion `json:"noteVersions" yaml:"noteVersions"`
}

// EventType represents the type of change in the store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in the store made outside the running process.
type Event struct {
	Type       EventType
	Collection string
	Key        string
	Timestamp  int64 // Unix timestamp
}

func (e Event) String() string {
	return string(e.Type) + " " + e.Collection + "/" + e.Key
}
