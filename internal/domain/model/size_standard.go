package model

import (
	"errors"
	"regexp"
	"strings"
)

var naicsPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidNAICS reports whether code is a well-formed six-digit NAICS code.
func ValidNAICS(code string) bool {
	return naicsPattern.MatchString(code)
}

// SizeStandard is one row of the SBA size-standard table.
type SizeStandard struct {
	NAICS       string        `json:"naics"        db:"naics"`
	Title       *string       `json:"title"        db:"title"`
	Basis       SizeBasisKind `json:"basis"        db:"basis"`
	Threshold   float64       `json:"threshold"    db:"threshold"`
	Unit        string        `json:"unit"         db:"unit"`
	EffectiveFY *int          `json:"effective_fy" db:"effective_fy"`
}

// Validate checks a row before it is written to the table.
func (s *SizeStandard) Validate() error {
	if !ValidNAICS(s.NAICS) {
		return errors.New("naics must be a 6-digit code")
	}
	if !s.Basis.Valid() {
		return errors.New("basis must be receipts or employees")
	}
	if s.Threshold <= 0 {
		return errors.New("threshold must be > 0")
	}
	if strings.TrimSpace(s.Unit) == "" {
		return errors.New("unit is required")
	}
	return nil
}
