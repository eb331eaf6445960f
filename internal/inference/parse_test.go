package inference

import (
	"errors"
	"testing"
)

func TestExtractTag(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		found  bool
	}{
		{"simple", "<summary>hello</summary>", "hello", true},
		{"surrounding text", "Sure!\n<summary>\n  a concept\n</summary>\nDone.", "a concept", true},
		{"skips empty block", "<summary> </summary><summary>second</summary>", "second", true},
		{"multiline", "<summary>line one\nline two</summary>", "line one\nline two", true},
		{"missing", "no tags here", "", false},
		{"unclosed", "<summary>dangling", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractTag(tt.output, "summary")
			if found != tt.found || got != tt.want {
				t.Errorf("extractTag() = (%q, %v), want (%q, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestDecodeTagged(t *testing.T) {
	type payload struct {
		Score float64 `json:"score"`
		Note  string  `json:"note"`
	}

	tests := []struct {
		name      string
		output    string
		want      payload
		wantErr   error
		wantError bool
	}{
		{
			name:   "tagged object",
			output: `<evaluation>{"score": 7, "note": "ok"}</evaluation>`,
			want:   payload{Score: 7, Note: "ok"},
		},
		{
			name:   "fenced inside tag",
			output: "<evaluation>\n```json\n{\"score\": 6.5}\n```\n</evaluation>",
			want:   payload{Score: 6.5},
		},
		{
			name:   "prose around json inside tag",
			output: `<evaluation>Here you go: {"score": 5, "note": "a } in a string"} thanks</evaluation>`,
			want:   payload{Score: 5, Note: "a } in a string"},
		},
		{
			name:   "untagged falls back to first json value",
			output: `I think {"score": 8} is fair.`,
			want:   payload{Score: 8},
		},
		{
			name:   "skips invalid candidate",
			output: `{not json} then {"score": 3}`,
			want:   payload{Score: 3},
		},
		{
			name:    "no payload",
			output:  "nothing structured",
			wantErr: ErrNoPayload,
		},
		{
			name:    "malformed tagged block",
			output:  `<evaluation>{"score": </evaluation>`,
			wantErr: ErrInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := decodeTagged(tt.output, "evaluation", &got)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decodeTagged() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeTagged() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeTagged() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeTagged_Array(t *testing.T) {
	var names []struct {
		AgentName string `json:"agent_name"`
	}
	output := `<panel>[{"agent_name": "a"}, {"agent_name": "b"}]</panel>`
	if err := decodeTagged(output, "panel", &names); err != nil {
		t.Fatalf("decodeTagged() error: %v", err)
	}
	if len(names) != 2 || names[1].AgentName != "b" {
		t.Errorf("decodeTagged() = %+v", names)
	}
}

func TestTextPayload(t *testing.T) {
	got, err := textPayload("<prd># Doc</prd>", "prd")
	if err != nil || got != "# Doc" {
		t.Errorf("textPayload(tagged) = (%q, %v)", got, err)
	}

	got, err = textPayload("  # Plain\n", "prd")
	if err != nil || got != "# Plain" {
		t.Errorf("textPayload(untagged) = (%q, %v)", got, err)
	}

	if _, err := textPayload("   ", "prd"); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("textPayload(empty) error = %v, want ErrEmptyOutput", err)
	}
}
