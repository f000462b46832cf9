package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Collection names.
const (
	CollectionNotes    = "notes"
	CollectionProjects = "projects"
	CollectionVersions = "noteVersions"
	CollectionSettings = "settings"
)

// Index names.
const (
	IndexByProject = "by_projectId"
	IndexBySubject = "by_subjectId"
	IndexByNote    = "by_noteId"
	IndexByName    = "by_name"
)

// Index declares a secondary index over a top-level string field of the record.
type Index struct {
	Name  string
	Field string
	Fold  bool // case-insensitive
}

var schema = map[string][]Index{
	CollectionNotes: {
		{Name: IndexByProject, Field: "projectId"},
		{Name: IndexBySubject, Field: "subjectId"},
	},
	CollectionProjects: {
		{Name: IndexByName, Field: "name", Fold: true},
	},
	CollectionVersions: {
		{Name: IndexByNote, Field: "noteId"},
	},
	CollectionSettings: nil,
}

// Collections returns the known collection names in a stable order.
func Collections() []string {
	return []string{CollectionNotes, CollectionProjects, CollectionVersions, CollectionSettings}
}

// Indices returns the indices declared for collection.
func Indices(collection string) ([]Index, error) {
	idx, ok := schema[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return idx, nil
}

// CheckRecord validates the collection and key of rec.
func CheckRecord(collection, key string) error {
	if _, ok := schema[collection]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

// IndexValue normalizes a lookup value for the named index.
func IndexValue(collection, index, value string) (string, error) {
	indices, err := Indices(collection)
	if err != nil {
		return "", err
	}
	for _, ix := range indices {
		if ix.Name == index {
			if ix.Fold {
				return strings.ToLower(value), nil
			}
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
}

// IndexValues extracts every declared index value from an encoded record.
// Missing or non-string fields are indexed as "".
func IndexValues(collection string, data []byte) (map[string]string, error) {
	indices, err := Indices(collection)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", collection, err)
	}

	out := make(map[string]string, len(indices))
	for _, ix := range indices {
		v, _ := fields[ix.Field].(string)
		if ix.Fold {
			v = strings.ToLower(v)
		}
		out[ix.Name] = v
	}
	return out, nil
}
