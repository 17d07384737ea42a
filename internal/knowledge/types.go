package knowledge

import (
	"fmt"
	"regexp"
	"time"
)

// Severity classifies how serious an error pattern is.
type Severity string

const (
	// SeverityCritical indicates errors that threaten process or data integrity.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates errors that break a major capability.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates recoverable errors in application logic.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates warnings and deprecations.
	SeverityLow Severity = "low"
)

// Common catalog categories. Category is an open string; these are the
// values the built-in analyzer produces.
const (
	CategoryRuntime    = "runtime"
	CategoryDatabase   = "database"
	CategoryNetwork    = "network"
	CategoryFilesystem = "filesystem"
	CategorySystem     = "system"
)

// ErrorPattern is a named, regex-identified class of error.
//
// PatternType is the globally unique key: adding a pattern with an existing
// PatternType overwrites the stored record.
type ErrorPattern struct {
	// PatternType uniquely identifies this pattern in the catalog.
	PatternType string `json:"pattern_type"`

	// Regex matches raw error text. Validated at add time.
	Regex string `json:"regex"`

	// Description is a human-readable summary of the error class.
	Description string `json:"description"`

	// Severity is one of critical, high, medium, low.
	Severity Severity `json:"severity"`

	// Category groups patterns (runtime, database, network, ...).
	Category string `json:"category"`

	// Subcategory refines the category (type_error, value_error, ...).
	Subcategory string `json:"subcategory"`

	// CommonCauses lists known causes, most likely first.
	CommonCauses []string `json:"common_causes"`

	// Solutions lists solution IDs authored for this pattern.
	Solutions []string `json:"solutions"`

	// Examples are raw error messages this pattern is known to match.
	Examples []string `json:"examples"`

	// RelatedPatterns lists pattern types of related error classes.
	RelatedPatterns []string `json:"related_patterns"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorSolution is a remediation recipe for a pattern.
type ErrorSolution struct {
	// SolutionID uniquely identifies this solution.
	SolutionID string `json:"solution_id"`

	// PatternType is the pattern this solution was authored for.
	// The catalog derives its pattern→solutions index from this field.
	PatternType string `json:"pattern_type"`

	// Description summarizes the fix.
	Description string `json:"description"`

	// Steps are the remediation steps in order.
	Steps []string `json:"steps"`

	// Prerequisites must hold before applying the steps.
	Prerequisites []string `json:"prerequisites"`

	// SuccessCriteria verify the fix worked.
	SuccessCriteria []string `json:"success_criteria"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MalformedPatternError reports a pattern whose regex does not compile.
// It is returned at add time so a bad pattern never reaches match time.
type MalformedPatternError struct {
	PatternType string
	Expr        string
	Err         error
}

func (e *MalformedPatternError) Error() string {
	return fmt.Sprintf("malformed pattern %q: invalid regex %q: %v", e.PatternType, e.Expr, e.Err)
}

func (e *MalformedPatternError) Unwrap() error {
	return e.Err
}

// Validate checks the pattern for a usable key and a compilable regex.
func (p *ErrorPattern) Validate() error {
	if p.PatternType == "" {
		return fmt.Errorf("%w: pattern_type is required", ErrInvalidPattern)
	}
	if p.Regex == "" {
		return fmt.Errorf("%w: regex is required", ErrInvalidPattern)
	}
	if _, err := regexp.Compile(p.Regex); err != nil {
		return &MalformedPatternError{PatternType: p.PatternType, Expr: p.Regex, Err: err}
	}
	return nil
}

// Validate checks the solution for required fields.
func (s *ErrorSolution) Validate() error {
	if s.PatternType == "" {
		return fmt.Errorf("%w: pattern_type is required", ErrInvalidSolution)
	}
	if s.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidSolution)
	}
	return nil
}

// Statistics summarizes catalog contents.
type Statistics struct {
	TotalPatterns  int              `json:"total_patterns"`
	TotalSolutions int              `json:"total_solutions"`
	ByCategory     map[string]int   `json:"by_category"`
	BySeverity     map[Severity]int `json:"by_severity"`
	SolutionCounts map[string]int   `json:"solution_counts"`
}
