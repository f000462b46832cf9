package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/notetaker/pkg/enrich"
)

// stripFences removes a surrounding ``` block, which models add even when
// asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}

func decode(reply string, v any) error {
	body := stripFences(reply)
	if body == "" {
		return errors.New("empty reply")
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

func parseOrganized(reply string, withTitle bool) (*enrich.Organized, error) {
	var org enrich.Organized
	if err := decode(reply, &org); err != nil {
		return nil, err
	}
	if withTitle && strings.TrimSpace(org.Title) == "" {
		return nil, errors.New("missing title")
	}
	org.GraphData = enrich.NormalizeGraph(org.GraphData)
	return &org, nil
}

func parseChat(reply string) (*enrich.ChatAnswer, error) {
	var answer enrich.ChatAnswer
	if err := decode(reply, &answer); err != nil {
		return nil, err
	}
	if answer.Answer == "" {
		return nil, errors.New("missing answer")
	}
	return &answer, nil
}

func parseSearch(reply string) ([]string, error) {
	var res struct {
		RelevantNoteIDs []string `json:"relevantNoteIds"`
	}
	if err := decode(reply, &res); err != nil {
		return nil, err
	}
	if res.RelevantNoteIDs == nil {
		return []string{}, nil
	}
	return res.RelevantNoteIDs, nil
}
