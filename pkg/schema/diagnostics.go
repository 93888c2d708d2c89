package schema

import "fmt"

// DiagnosticSeverity indicates whether an issue is an error or warning.
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
)

// Diagnostic codes emitted during discovery and manifest generation.
const (
	DiagDuplicateAction      = "duplicate_action"
	DiagUnresolvableBinding  = "unresolvable_binding"
	DiagNotAFunction         = "not_a_function"
	DiagUnsupportedParameter = "unsupported_parameter"
)

// Diagnostic is a single non-fatal issue found while generating a manifest.
// Pos is a human-readable source location (file:line).
type Diagnostic struct {
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Pos      string             `json:"pos,omitempty"`
	Severity DiagnosticSeverity `json:"severity"`
}

func (d Diagnostic) String() string {
	if d.Pos != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", d.Severity, d.Pos, d.Message, d.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Severity, d.Message, d.Code)
}

// Warning builds a warning-severity diagnostic.
func Warning(code, pos, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
		Severity: SeverityWarning,
	}
}
