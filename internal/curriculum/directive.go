package curriculum

import "encoding/json"

// TierSpec describes the required script shape for one lesson tier: how
// many parts and the ordered part-name flow.
type TierSpec struct {
	PartCount int      `json:"part_count"`
	PartFlow  []string `json:"part_flow"`
}

// PersonaAssignment binds a narrator persona to its role and subjects.
type PersonaAssignment struct {
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Subjects []string `json:"subjects,omitempty"`
}

// Directive is the master generation directive: required output shape per
// tier, display names per (curriculum type, level), and the persona
// assignment table. Read-only input to generation.
type Directive struct {
	Version      string                       `json:"version"`
	Tiers        map[string]TierSpec          `json:"tiers"`
	DisplayNames map[string]map[string]string `json:"display_names"`
	Personas     []PersonaAssignment          `json:"personas"`

	// raw preserves the directive document verbatim for prompt embedding.
	raw json.RawMessage
}

// ParseDirective decodes a directive document, keeping the raw bytes.
func ParseDirective(data []byte) (*Directive, error) {
	var d Directive
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	d.raw = append(json.RawMessage(nil), data...)
	return &d, nil
}

// Raw returns the directive document as loaded from disk. Empty for a nil
// directive.
func (d *Directive) Raw() json.RawMessage {
	if d == nil {
		return nil
	}
	return d.raw
}

// TierFor returns the tier spec matching the given part count.
func (d *Directive) TierFor(partCount int) (TierSpec, bool) {
	if d == nil {
		return TierSpec{}, false
	}
	for _, tier := range d.Tiers {
		if tier.PartCount == partCount {
			return tier, true
		}
	}
	return TierSpec{}, false
}

// DisplayName resolves the display name for a (curriculum type, level)
// pair, falling back to the level itself.
func (d *Directive) DisplayName(curriculumType, level string) string {
	if d != nil {
		if levels, ok := d.DisplayNames[curriculumType]; ok {
			if name, ok := levels[level]; ok {
				return name
			}
		}
	}
	return level
}
