package domain

import (
	"encoding/json"
	"strings"
)

// Comment is an explicitly optional free-text field. Upstream payloads use
// null, missing and empty string interchangeably; NormalizeComment collapses
// them once at the boundary so nothing downstream branches on nil.
type Comment struct {
	Text string
	Set  bool
}

func NewComment(text string) Comment {
	return NormalizeComment(&text)
}

// NormalizeComment maps nil, empty and whitespace-only input to the unset
// comment.
func NormalizeComment(raw *string) Comment {
	if raw == nil {
		return Comment{}
	}
	text := strings.TrimSpace(*raw)
	if text == "" {
		return Comment{}
	}
	return Comment{Text: text, Set: true}
}

func (c Comment) String() string {
	return c.Text
}

func (c Comment) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte("null"), nil
	}
	return json.Marshal(c.Text)
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Comment{}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*c = NormalizeComment(&text)
	return nil
}
