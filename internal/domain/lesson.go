package domain

import (
	"fmt"
	"strings"
)

// Part counts per lesson tier. Lower-primary lessons get the short format,
// everything else the long one.
const (
	LowerPartCount = 4
	UpperPartCount = 8
)

// lowGradeTokens identify lower-primary levels. A level string containing
// any of these yields the smaller part count.
var lowGradeTokens = []string{
	"grade 1", "grade 2", "grade 3", "grade 4", "grade 5", "grade 6",
	"year 1", "year 2", "year 3", "year 4", "year 5", "year 6",
}

// LessonRecord is one row of curriculum metadata driving one generation
// request. Keys come from the source mapping file headers (Subject,
// Grade/Year/Form, Lesson Number, Topic, Objective, ...).
type LessonRecord map[string]string

// Field returns the first non-empty value among the given keys.
func (r LessonRecord) Field(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r[key]); v != "" {
			return v
		}
	}
	return ""
}

// LevelText joins the grade/year/form fields into one lowercase string for
// tier classification.
func (r LessonRecord) LevelText() string {
	parts := make([]string, 0, 3)
	for _, key := range []string{"Grade", "Year", "Form"} {
		if v := strings.TrimSpace(r[key]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// RequiredPartCount classifies a lesson into a script part count based on
// its level text: lower-primary levels get LowerPartCount, all others
// UpperPartCount.
func RequiredPartCount(r LessonRecord) int {
	level := r.LevelText()
	for _, token := range lowGradeTokens {
		if strings.Contains(level, token) {
			return LowerPartCount
		}
	}
	return UpperPartCount
}

// LessonID derives the stable per-batch lesson identifier from the Lesson
// Number field, falling back to the 1-based position in the mapping. The
// identifier always carries an L prefix.
func (r LessonRecord) LessonID(position int) string {
	id := strings.TrimSpace(r["Lesson Number"])
	if id == "" {
		id = fmt.Sprintf("%03d", position)
	}
	if !strings.HasPrefix(id, "L") {
		id = "L" + id
	}
	return id
}

// BaseFilename builds the output file stem {Subject}_{GradeYearForm}_Lesson{n}
// with spaces removed.
func (r LessonRecord) BaseFilename(position int) string {
	subject := r.Field("Subject")
	if subject == "" {
		subject = "SUBJECT"
	}
	level := r.Field("Grade", "Year", "Form")
	if level == "" {
		level = "GRADE"
	}
	num := strings.TrimSpace(r["Lesson Number"])
	if num == "" {
		num = fmt.Sprintf("%03d", position)
	}
	num = strings.TrimPrefix(num, "L")

	return fmt.Sprintf("%s_%s_Lesson%s",
		strings.ReplaceAll(subject, " ", ""),
		strings.ReplaceAll(level, " ", ""),
		num,
	)
}
