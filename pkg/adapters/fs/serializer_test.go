package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownSerializer(t *testing.T) {
	s := NewMarkdownSerializer("content")

	tests := []struct {
		name string
		data string
	}{
		{"plain", `{"id":"a","title":"Hello","content":"body"}`},
		{"empty body", `{"id":"a","content":""}`},
		{"leading newline", `{"id":"a","content":"\n\nstarts blank"}`},
		{"delimiter in body", `{"id":"a","content":"one\n---\ntwo"}`},
		{"multiline field", `{"id":"a","summary":"x\n---\ny","content":"b"}`},
		{"numbers", `{"id":"a","graphData":{"data":[{"label":"a","value":2},{"label":"b","value":1.25}]},"content":""}`},
		{"timestamp", `{"id":"a","createdAt":"2026-01-02T03:04:05.0000006Z","content":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := s.Encode([]byte(tt.data))
			require.NoError(t, err)
			back, err := s.Decode(raw)
			require.NoError(t, err)
			assert.JSONEq(t, tt.data, string(back))
		})
	}
}

func TestMarkdownSerializer_Foreign(t *testing.T) {
	s := NewMarkdownSerializer("content")

	back, err := s.Decode([]byte("just text"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"just text"}`, string(back))

	back, err = s.Decode([]byte("---\r\ntitle: win\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"win","content":"body"}`, string(back))

	_, err = s.Decode([]byte("---\ntitle: open"))
	assert.Error(t, err)
}

func TestJSONSerializer(t *testing.T) {
	s := NewJSONSerializer()
	raw, err := s.Encode([]byte(`{"id":"p","subjects":[]}`))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"id\"")
	back, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p","subjects":[]}`, string(back))

	_, err = s.Encode([]byte(`{`))
	assert.Error(t, err)
}
