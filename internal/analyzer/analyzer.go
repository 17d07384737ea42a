package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// errorTypeRule binds a category to a regex over language-style exception
// names. Rules are scanned in table order and the first hit wins, so more
// specific categories must come before catch-alls.
type errorTypeRule struct {
	category string
	re       *regexp.Regexp
}

var errorTypePatterns = []errorTypeRule{
	{category: "database", re: regexp.MustCompile(`\b(DatabaseError|IntegrityError|OperationalError|ProgrammingError|DataError|InterfaceError)\b`)},
	{category: "network", re: regexp.MustCompile(`\b(ConnectionRefusedError|ConnectionResetError|ConnectionAbortedError|ConnectionError|TimeoutError|BrokenPipeError|SSLError)\b`)},
	{category: "filesystem", re: regexp.MustCompile(`\b(FileNotFoundError|PermissionError|IsADirectoryError|NotADirectoryError|FileExistsError|IOError)\b`)},
	{category: "system", re: regexp.MustCompile(`\b(MemoryError|SystemError|OverflowError|ProcessLookupError|ChildProcessError|OSError)\b`)},
	{category: "runtime", re: regexp.MustCompile(`\b(TypeError|ValueError|AttributeError|IndexError|KeyError|NameError|ZeroDivisionError|RecursionError|UnboundLocalError|RuntimeError)\b`)},
}

type severityRule struct {
	severity string
	re       *regexp.Regexp
}

var severityPatterns = []severityRule{
	{severity: "critical", re: regexp.MustCompile(`\b(MemoryError|SystemError|SegmentationFault|FatalError|StackOverflow|RecursionError)\b`)},
	{severity: "high", re: regexp.MustCompile(`\b(DatabaseError|IntegrityError|ConnectionError|ConnectionRefusedError|TimeoutError|PermissionError|SSLError)\b`)},
	{severity: "medium", re: regexp.MustCompile(`\b(TypeError|ValueError|AttributeError|KeyError|IndexError|NameError|FileNotFoundError)\b`)},
	{severity: "low", re: regexp.MustCompile(`(?i)\b(warning|deprecat\w*|notice)\b`)},
}

// subcategoryHints maps substrings of the error type to a subcategory.
// Scanned in order; first hit wins.
var subcategoryHints = []struct {
	substr      string
	subcategory string
}{
	{"Type", "type_error"},
	{"Value", "value_error"},
	{"Attribute", "attribute_error"},
	{"Index", "index_error"},
	{"Key", "key_error"},
	{"Name", "name_error"},
}

// Stack frame sub-patterns. Each frame line is matched against all three
// independently and every hit accumulates.
var (
	frameFileRe   = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
	frameFuncRe   = regexp.MustCompile(`\bin (\w+)`)
	frameModuleRe = regexp.MustCompile(`from ([\w.]+) import`)
)

// Code window sub-patterns.
var (
	assignRe = regexp.MustCompile(`^\s*(\w+)\s*=[^=]`)
	callRe   = regexp.MustCompile(`(\w+)\s*\(`)
	importRe = regexp.MustCompile(`^\s*(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import)`)
)

const codeWindow = 3

// Analyzer turns raw error signals into a structured ContextInfo. It is
// stateless apart from the logger; the rule tables are package data.
type Analyzer struct {
	logger *zap.Logger
}

// New returns an Analyzer. A nil logger falls back to a no-op logger.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// AnalyzeErrorMessage classifies an error message into category, error type,
// severity and subcategory. Unmatched dimensions report "unknown".
func (a *Analyzer) AnalyzeErrorMessage(text string) MessageAnalysis {
	result := MessageAnalysis{
		Category:    "unknown",
		ErrorType:   "unknown",
		Severity:    "unknown",
		Subcategory: "unknown",
	}

	for _, rule := range errorTypePatterns {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			result.Category = rule.category
			result.ErrorType = m[1]
			break
		}
	}

	for _, rule := range severityPatterns {
		if rule.re.MatchString(text) {
			result.Severity = rule.severity
			break
		}
	}

	for _, hint := range subcategoryHints {
		if strings.Contains(result.ErrorType, hint.substr) {
			result.Subcategory = hint.subcategory
			break
		}
	}

	return result
}

// AnalyzeStackTrace extracts file paths, line numbers, function names and
// module names from a stack trace. Each line is matched against the three
// frame sub-patterns independently; hits accumulate into sets.
func (a *Analyzer) AnalyzeStackTrace(trace string) *StackInfo {
	files := map[string]struct{}{}
	lines := map[int]struct{}{}
	funcs := map[string]struct{}{}
	modules := map[string]struct{}{}

	for _, frame := range strings.Split(trace, "\n") {
		if m := frameFileRe.FindStringSubmatch(frame); m != nil {
			files[m[1]] = struct{}{}
			if n, err := strconv.Atoi(m[2]); err == nil {
				lines[n] = struct{}{}
			}
		}
		if m := frameFuncRe.FindStringSubmatch(frame); m != nil {
			funcs[m[1]] = struct{}{}
		}
		if m := frameModuleRe.FindStringSubmatch(frame); m != nil {
			modules[m[1]] = struct{}{}
		}
	}

	return &StackInfo{
		FilePaths:     sortedKeys(files),
		LineNumbers:   sortedInts(lines),
		FunctionNames: sortedKeys(funcs),
		ModuleNames:   sortedKeys(modules),
	}
}

// AnalyzeCodeContext extracts variables, function calls and imports from the
// window of lines around lineNumber (1-based, ±3 lines clamped to bounds).
// Only the window is inspected, never the whole file.
func (a *Analyzer) AnalyzeCodeContext(code string, lineNumber int) *CodeInfo {
	all := strings.Split(code, "\n")

	start := lineNumber - 1 - codeWindow
	if start < 0 {
		start = 0
	}
	end := lineNumber + codeWindow
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	if end < start {
		end = start
	}
	window := all[start:end]

	vars := map[string]struct{}{}
	calls := map[string]struct{}{}
	imports := map[string]struct{}{}

	for _, line := range window {
		if m := assignRe.FindStringSubmatch(line); m != nil {
			vars[m[1]] = struct{}{}
		}
		for _, m := range callRe.FindAllStringSubmatch(line, -1) {
			calls[m[1]] = struct{}{}
		}
		if m := importRe.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				imports[m[1]] = struct{}{}
			} else {
				imports[m[2]] = struct{}{}
			}
		}
	}

	return &CodeInfo{
		LineNumber:       lineNumber,
		SurroundingLines: window,
		Variables:        sortedKeys(vars),
		FunctionCalls:    sortedKeys(calls),
		Imports:          sortedKeys(imports),
	}
}

// AnalyzeEnvironment extracts runtime facts from a loosely typed environment
// map and flags resource pressure. Memory above 0.8 and CPU above 0.9 are
// reported independently; both may fire.
func (a *Analyzer) AnalyzeEnvironment(env map[string]interface{}) *EnvironmentInfo {
	info := &EnvironmentInfo{}
	if env == nil {
		return info
	}

	info.RuntimeVersion = stringValue(env, "runtime_version")
	if info.RuntimeVersion == "" {
		info.RuntimeVersion = stringValue(env, "python_version")
	}
	info.OSInfo = stringValue(env, "os_info")
	info.Dependencies = stringMapValue(env, "dependencies")
	info.EnvironmentVars = stringMapValue(env, "environment_vars")
	info.ResourceUsage = floatMapValue(env, "resource_usage")

	if info.ResourceUsage["memory_usage"] > 0.8 {
		info.ResourceIssues = append(info.ResourceIssues, "high_memory_usage")
	}
	if info.ResourceUsage["cpu_usage"] > 0.9 {
		info.ResourceIssues = append(info.ResourceIssues, "high_cpu_usage")
	}

	return info
}

// Request carries the optional raw signals accompanying an error message.
type Request struct {
	StackTrace  string
	Code        string
	CodeLine    int
	Environment map[string]interface{}
}

// Analyze composes the per-signal analyses into one ContextInfo. It never
// fails: an internal panic is logged and a minimal ContextInfo with
// ErrorType "unknown" is returned instead, so downstream consumers always
// receive a usable value.
func (a *Analyzer) Analyze(message string, req *Request) (info *ContextInfo) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("context analysis failed", zap.Any("panic", r))
			info = &ContextInfo{
				ErrorType:    "unknown",
				ErrorMessage: message,
				Timestamp:    time.Now(),
			}
		}
	}()

	msg := a.AnalyzeErrorMessage(message)
	info = &ContextInfo{
		ErrorType:    msg.ErrorType,
		ErrorMessage: message,
		Severity:     msg.Severity,
		Category:     msg.Category,
		Subcategory:  msg.Subcategory,
		Timestamp:    time.Now(),
	}

	if req == nil {
		return info
	}
	if req.StackTrace != "" {
		info.Stack = a.AnalyzeStackTrace(req.StackTrace)
	}
	if req.Code != "" {
		info.Code = a.AnalyzeCodeContext(req.Code, req.CodeLine)
	}
	if req.Environment != nil {
		info.Environment = a.AnalyzeEnvironment(req.Environment)
	}
	return info
}

// Helpers

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInts(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func stringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringMapValue(m map[string]interface{}, key string) map[string]string {
	switch v := m[key].(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

func floatMapValue(m map[string]interface{}, key string) map[string]float64 {
	switch v := m[key].(type) {
	case map[string]float64:
		return v
	case map[string]interface{}:
		out := make(map[string]float64, len(v))
		for k, val := range v {
			switch n := val.(type) {
			case float64:
				out[k] = n
			case int:
				out[k] = float64(n)
			}
		}
		return out
	}
	return nil
}
