// Package diag implements the error taxonomy from spec.md §7:
// ParseError, ResolveError, ValidationError, StateError, ProviderError and
// PlanError, each a concrete type carrying a source span when one is
// available so errors surface to the user verbatim rather than as an
// opaque wrapped string.
package diag

import (
	"fmt"

	"github.com/carina-lang/carina/internal/value"
)

// ParseError is syntactic; fatal for the affected file.
type ParseError struct {
	Message string
	Span    value.Span
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error at %s: %s", e.Span.String(), e.Message) }

// ResolveError covers unresolved references, cyclic imports and module
// input mismatches. Kind names which case, matching
// module_resolver.rs's ModuleError variants.
type ResolveError struct {
	Kind    string // "unresolved_reference" | "circular_import" | "missing_input" | "invalid_input_type" | "unknown_module" | "not_found" | "io" | "parse"
	Message string
	Span    value.Span
}

func (e *ResolveError) Error() string {
	if e.Span.Line == 0 {
		return fmt.Sprintf("resolve error (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("resolve error (%s) at %s: %s", e.Kind, e.Span.String(), e.Message)
}

func UnresolvedReference(ref string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("reference %q does not resolve to any binding in scope", ref), Span: span}
}

func CircularImport(cyclePath []string, span value.Span) *ResolveError {
	msg := "circular import: "
	for i, p := range cyclePath {
		if i > 0 {
			msg += " -> "
		}
		msg += p
	}
	return &ResolveError{Kind: "circular_import", Message: msg, Span: span}
}

func MissingInput(moduleName, inputName string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "missing_input", Message: fmt.Sprintf("module %q requires input %q", moduleName, inputName), Span: span}
}

func UnexpectedInput(moduleName, inputName string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "missing_input", Message: fmt.Sprintf("module %q does not declare input %q", moduleName, inputName), Span: span}
}

func InvalidInputType(moduleName, inputName, expected, got string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "invalid_input_type", Message: fmt.Sprintf("module %q input %q expected %s, got %s", moduleName, inputName, expected, got), Span: span}
}

func UnknownModule(alias string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "unknown_module", Message: fmt.Sprintf("no import bound to alias %q", alias), Span: span}
}

func ModuleNotFound(path string, span value.Span) *ResolveError {
	return &ResolveError{Kind: "not_found", Message: fmt.Sprintf("module path %q does not exist", path), Span: span}
}

func IOError(path string, cause error, span value.Span) *ResolveError {
	return &ResolveError{Kind: "io", Message: fmt.Sprintf("failed to read %q: %v", path, cause), Span: span}
}

// ValidationError is a schema violation; fatal; emitted as a batch when
// possible (spec.md §4.1's Diagnostic list, one ValidationError per batch).
type ValidationError struct {
	ResourceKey string
	Diagnostics []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for %s:", e.ResourceKey)
	for _, d := range e.Diagnostics {
		msg += "\n  - " + d
	}
	return msg
}

// StateError covers lock contention, version/lineage mismatch and corrupt
// documents; fatal; lock contention is retryable on the user's next
// invocation, never auto-retried within a call.
type StateError struct {
	Kind      string // "locked" | "version_mismatch" | "lineage_mismatch" | "corrupt"
	Message   string
	Retryable bool
}

func (e *StateError) Error() string { return fmt.Sprintf("state error (%s): %s", e.Kind, e.Message) }

// ProviderErrorKind distinguishes transient from permanent provider
// failures, per spec.md §7.
type ProviderErrorKind string

const (
	Transient ProviderErrorKind = "transient"
	Permanent ProviderErrorKind = "permanent"
)

// ProviderError wraps a provider-reported failure.
type ProviderError struct {
	Kind      ProviderErrorKind
	Message   string
	Retryable bool
	Cause     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// UnsupportedType is the specific ProviderError spec.md §4.7 names for an
// unknown resource type handed to a provider.
func UnsupportedType(resourceType string) *ProviderError {
	return &ProviderError{Kind: Permanent, Message: fmt.Sprintf("unsupported resource type %q", resourceType), Retryable: false}
}

func Timeout(resourceType, op string) *ProviderError {
	return &ProviderError{Kind: Transient, Message: fmt.Sprintf("%s %s timed out", op, resourceType), Retryable: true}
}

// PlanError is an inconsistency discovered mid-plan, e.g. a dependency's
// Create succeeded but produced no id; fatal.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string { return fmt.Sprintf("plan error: %s", e.Message) }
