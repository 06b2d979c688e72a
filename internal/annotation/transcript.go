package annotation

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ValidateTranscript checks an upload before it is sent: a JSON object with a
// "dialogue" array whose turns carry "speaker" and "text".
func ValidateTranscript(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return &ValidationError{Subject: "transcript", Problems: []string{"not valid JSON"}}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return &ValidationError{Subject: "transcript", Problems: []string{"top level must be an object"}}
	}
	dialogue := root.Get("dialogue")
	if !dialogue.IsArray() {
		return &ValidationError{Subject: "transcript", Problems: []string{`"dialogue" must be an array`}}
	}

	var problems []string
	for i, turn := range dialogue.Array() {
		if !turn.Get("speaker").Exists() || !turn.Get("text").Exists() {
			problems = append(problems, fmt.Sprintf("turn %d needs \"speaker\" and \"text\"", i))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Subject: "transcript", Problems: problems}
	}
	return nil
}
