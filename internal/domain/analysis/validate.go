package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxStudentIDLength caps the identifier in characters.
const MaxStudentIDLength = 255

// ValidateStudentID checks the identifier used to correlate a submission with its record.
// Any non-empty text is accepted; the store query is parameterized.
func ValidateStudentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return Invalid(errors.New("student ID cannot be empty"))
	}
	if n := utf8.RuneCountInString(id); n > MaxStudentIDLength {
		return Invalid(fmt.Errorf("student ID is too long (%d characters, max %d)", n, MaxStudentIDLength))
	}
	return nil
}

// ValidatePercentage checks the score lies in [0, 100].
func ValidatePercentage(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 100 {
		return Invalid(fmt.Errorf("score percentage must be between 0 and 100, got %v", p))
	}
	return nil
}

// SanitizeString removes NUL and control characters and trims the result.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// Normalize sanitizes every free text field and validates the submission.
func (s Submission) Normalize() (Submission, error) {
	out := Submission{
		StudentID:       SanitizeString(s.StudentID),
		StudentName:     SanitizeString(s.StudentName),
		Subject:         SanitizeString(s.Subject),
		ScorePercentage: s.ScorePercentage,
		IncorrectTopics: SanitizeString(s.IncorrectTopics),
	}
	if err := ValidateStudentID(out.StudentID); err != nil {
		return out, err
	}
	if err := ValidatePercentage(out.ScorePercentage); err != nil {
		return out, err
	}
	return out, nil
}
