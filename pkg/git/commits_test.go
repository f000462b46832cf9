package git

import "testing"

func TestFormatCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "no type defaults to chore",
			subject: "save note",
			want:    "chore: save note\n\nPowered-by: notetaker",
		},
		{
			name:    "scoped",
			ctype:   CommitTypeFeat,
			scope:   "notes",
			subject: "create 42",
			want:    "feat(notes): create 42\n\nPowered-by: notetaker",
		},
		{
			name:    "body is trimmed",
			ctype:   CommitTypeDocs,
			subject: "restore 42",
			body:    "  from version 7\n",
			want:    "docs: restore 42\n\nfrom version 7\n\nPowered-by: notetaker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCommitMessage(tt.ctype, tt.scope, tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("FormatCommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendFooter(t *testing.T) {
	if got := AppendFooter("edit note\n"); got != "edit note\n\nPowered-by: notetaker" {
		t.Errorf("AppendFooter() = %q", got)
	}
	signed := "edit note\n\nPowered-by: notetaker"
	if got := AppendFooter(signed); got != signed {
		t.Errorf("AppendFooter() added a second footer: %q", got)
	}
}
