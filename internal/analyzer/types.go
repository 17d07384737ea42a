package analyzer

import "time"

// ContextInfo holds the structured facts derived from one raw error
// occurrence. It is created fresh per Analyze call, owned by the caller,
// and never persisted.
type ContextInfo struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`

	Stack       *StackInfo       `json:"stack,omitempty"`
	Code        *CodeInfo        `json:"code,omitempty"`
	Environment *EnvironmentInfo `json:"environment,omitempty"`

	// RelatedPatterns holds pattern types a caller has associated with this
	// occurrence. Duplicates collapse.
	RelatedPatterns []string `json:"related_patterns,omitempty"`

	Severity    string    `json:"severity"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Timestamp   time.Time `json:"timestamp"`
}

// StackInfo holds the facts extracted from a stack trace. Fields are sets:
// order is irrelevant and duplicates collapse; slices are sorted for
// deterministic output.
type StackInfo struct {
	FilePaths     []string `json:"file_paths"`
	LineNumbers   []int    `json:"line_numbers"`
	FunctionNames []string `json:"function_names"`
	ModuleNames   []string `json:"module_names"`
}

// CodeInfo holds the facts extracted from the code window around the
// failing line.
type CodeInfo struct {
	LineNumber       int      `json:"line_number"`
	SurroundingLines []string `json:"surrounding_lines"`
	Variables        []string `json:"variables"`
	FunctionCalls    []string `json:"function_calls"`
	Imports          []string `json:"imports"`
}

// EnvironmentInfo holds runtime environment facts.
type EnvironmentInfo struct {
	RuntimeVersion  string             `json:"runtime_version"`
	OSInfo          string             `json:"os_info"`
	Dependencies    map[string]string  `json:"dependencies,omitempty"`
	EnvironmentVars map[string]string  `json:"environment_vars,omitempty"`
	ResourceUsage   map[string]float64 `json:"resource_usage,omitempty"`

	// ResourceIssues flags resource pressure: "high_memory_usage" when
	// memory_usage > 0.8 and "high_cpu_usage" when cpu_usage > 0.9. The
	// checks are independent and both may fire.
	ResourceIssues []string `json:"resource_issues,omitempty"`
}

// MessageAnalysis is the classification derived from an error message alone.
type MessageAnalysis struct {
	Category    string `json:"category"`
	ErrorType   string `json:"error_type"`
	Severity    string `json:"severity"`
	Subcategory string `json:"subcategory"`
}
