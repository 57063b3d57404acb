package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studysmart/lesson-engine/internal/curriculum"
	"github.com/studysmart/lesson-engine/internal/domain"
)

// promptParams carries everything the prompt template needs. One
// parameterized builder replaces the per-revision prompt copies the
// original scripts accumulated.
type promptParams struct {
	Lesson    domain.LessonRecord
	Directive *curriculum.Directive
	PartCount int
	Bounds    domain.LengthBounds
}

func buildPrompt(p promptParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate a complete lesson following the master directive.\n\n")

	fmt.Fprintf(&b, "MANDATORY STRUCTURE:\n")
	fmt.Fprintf(&b, "- EXACTLY %d script parts, EACH %d-%d characters\n", p.PartCount, p.Bounds.Min, p.Bounds.Max)
	fmt.Fprintf(&b, "- EXACTLY ONE notes_exercises field, %d-%d characters TOTAL\n", p.Bounds.Min, p.Bounds.Max)
	fmt.Fprintf(&b, "- At least %d illustrations\n", p.PartCount)

	if tier, ok := p.Directive.TierFor(p.PartCount); ok && len(tier.PartFlow) > 0 {
		fmt.Fprintf(&b, "- Part headings follow this flow: %s\n", strings.Join(tier.PartFlow, " -> "))
	}
	b.WriteString("\n")

	if raw := p.Directive.Raw(); len(raw) > 0 {
		fmt.Fprintf(&b, "MASTER DIRECTIVE:\n%s\n\n", raw)
	}

	lessonJSON, err := json.MarshalIndent(p.Lesson, "", "  ")
	if err != nil {
		lessonJSON = []byte("{}")
	}
	fmt.Fprintf(&b, "LESSON DATA:\n%s\n\n", lessonJSON)

	fmt.Fprintf(&b, `OUTPUT FORMAT (JSON only):
{
  "script_parts": [
    {"heading": "Part 1", "content": "%d-%d char content..."}
  ],
  "notes_exercises": "Single %d-%d char text with notes and exercises",
  "illustrations": [
    {"illustration_number": 1, "scene_description": "...", "elements": ["..."], "part_association": 1}
  ]
}

script_parts must hold exactly %d entries. Return ONLY JSON.`,
		p.Bounds.Min, p.Bounds.Max, p.Bounds.Min, p.Bounds.Max, p.PartCount)

	return b.String()
}
