package fs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/pkg/core"
)

// Serializer converts between the JSON record payload and the on-disk format.
type Serializer interface {
	// Ext is the file extension, including the dot.
	Ext() string
	// Encode converts record data to file bytes.
	Encode(data []byte) ([]byte, error)
	// Decode converts file bytes back to record data.
	Decode(raw []byte) ([]byte, error)
}

// DefaultSerializers maps each collection to its file format.
// Notes are Markdown with YAML frontmatter so the vault stays human-editable.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		core.CollectionNotes:    NewMarkdownSerializer("content"),
		core.CollectionProjects: NewJSONSerializer(),
		core.CollectionVersions: NewJSONSerializer(),
		core.CollectionSettings: NewJSONSerializer(),
	}
}

// --- JSON Serializer ---

// JSONSerializer writes records as indented JSON.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

func (s *JSONSerializer) Ext() string { return ".json" }

func (s *JSONSerializer) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (s *JSONSerializer) Decode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return buf.Bytes(), nil
}

// --- Markdown Serializer ---

// MarkdownSerializer writes one string field as the document body and every
// other field as YAML frontmatter.
type MarkdownSerializer struct {
	BodyField string
}

func NewMarkdownSerializer(bodyField string) *MarkdownSerializer {
	return &MarkdownSerializer{BodyField: bodyField}
}

func (s *MarkdownSerializer) Ext() string { return ".md" }

func (s *MarkdownSerializer) Encode(data []byte) ([]byte, error) {
	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	body, _ := payload[s.BodyField].(string)
	delete(payload, s.BodyField)

	// json.Number would be written as a quoted string by yaml.
	meta, err := yamlSafe(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(meta); err != nil {
		return nil, err
	}
	encoder.Close()
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func (s *MarkdownSerializer) Decode(raw []byte) ([]byte, error) {
	if bytes.HasPrefix(raw, []byte("---\r\n")) {
		raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	}

	payload := make(map[string]any)
	body := string(raw)

	if bytes.HasPrefix(raw, []byte("---\n")) {
		rest := raw[4:]
		var front, content []byte
		if bytes.HasPrefix(rest, []byte("---\n")) {
			content = rest[4:]
		} else {
			end := bytes.Index(rest, []byte("\n---\n"))
			if end < 0 {
				if !bytes.HasSuffix(rest, []byte("\n---")) {
					return nil, errors.New("frontmatter started but no closing delimiter found")
				}
				end = len(rest) - 4
				front = rest[:end]
			} else {
				front = rest[:end]
				content = rest[end+5:]
			}
		}
		if err := yaml.Unmarshal(front, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		if payload == nil {
			payload = make(map[string]any)
		}
		body = string(content)
	}

	payload[s.BodyField] = body
	return json.Marshal(payload)
}

// yamlSafe replaces json.Number values with int64 or float64 so that yaml
// emits them as numbers.
func yamlSafe(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			conv, err := yamlSafe(e)
			if err != nil {
				return nil, err
			}
			t[k] = conv
		}
		return t, nil
	case []any:
		for i, e := range t {
			conv, err := yamlSafe(e)
			if err != nil {
				return nil, err
			}
			t[i] = conv
		}
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return f, nil
	default:
		return v, nil
	}
}
