package domain

import "fmt"

// Default character bounds for script part content and the notes/exercises
// text. Both bounds are inclusive.
const (
	DefaultMinContentChars = 1600
	DefaultMaxContentChars = 1950
)

// RequiredContentKeys are the top-level keys a generation response must
// contain to be considered structurally complete.
var RequiredContentKeys = []string{"script_parts", "notes_exercises", "illustrations"}

// ScriptPart is one narration segment of a lesson script.
type ScriptPart struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Illustration describes one illustration to accompany the script.
type Illustration struct {
	Number           int      `json:"illustration_number"`
	SceneDescription string   `json:"scene_description"`
	Elements         []string `json:"elements"`
	PartAssociation  int      `json:"part_association"`
}

// GeneratedContent is the candidate output of one generation attempt. It
// exists only for the duration of one lesson's processing.
type GeneratedContent struct {
	ScriptParts    []ScriptPart   `json:"script_parts"`
	NotesExercises string         `json:"notes_exercises"`
	Illustrations  []Illustration `json:"illustrations"`
}

// LengthBounds is a closed character-count interval.
type LengthBounds struct {
	Min int
	Max int
}

// DefaultLengthBounds returns the reference 1600-1950 interval.
func DefaultLengthBounds() LengthBounds {
	return LengthBounds{Min: DefaultMinContentChars, Max: DefaultMaxContentChars}
}

// Contains reports whether the text's character count falls inside the
// interval. Counts characters, not bytes.
func (b LengthBounds) Contains(s string) bool {
	n := len([]rune(s))
	return n >= b.Min && n <= b.Max
}

// Validate checks the structural and length constraints for a candidate:
// exactly requiredParts script parts, and every part content plus the
// notes/exercises text inside bounds. It returns the list of violations,
// empty when the content is acceptable.
func (c *GeneratedContent) Validate(requiredParts int, bounds LengthBounds) []string {
	if c == nil {
		return []string{"content is nil"}
	}

	var violations []string

	if got := len(c.ScriptParts); got != requiredParts {
		violations = append(violations,
			fmt.Sprintf("wrong number of script parts: %d (expected %d)", got, requiredParts))
	}

	for i, part := range c.ScriptParts {
		if !bounds.Contains(part.Content) {
			violations = append(violations,
				fmt.Sprintf("script part %d content length %d outside [%d, %d]",
					i+1, len([]rune(part.Content)), bounds.Min, bounds.Max))
		}
	}

	if !bounds.Contains(c.NotesExercises) {
		violations = append(violations,
			fmt.Sprintf("notes_exercises length %d outside [%d, %d]",
				len([]rune(c.NotesExercises)), bounds.Min, bounds.Max))
	}

	return violations
}
