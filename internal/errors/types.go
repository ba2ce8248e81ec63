// Package errors defines the structured error taxonomy shared by the hakai
// compile pipeline, the page resolver and the live reload coordinator.
//
// Every failure produced while compiling a page is a *HakaiError carrying a
// stable code and, when known, the file location the diagnostic refers to.
// These errors are recoverable at the connection level: the HTTP handler and
// the live reload coordinator turn them into user-visible messages. The one
// fatal class is DuplicatePageName, raised by the startup check.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups error codes into broad categories.
type Kind string

const (
	KindValidation Kind = "validation"
	KindResolution Kind = "resolution"
	KindCompile    Kind = "compile"
	KindIO         Kind = "io"
	KindConfig     Kind = "config"
	KindInternal   Kind = "internal"
)

// Error codes.
const (
	CodeInvalidExtension          = "InvalidExtension"
	CodeUnterminatedSection       = "UnterminatedSection"
	CodeComponentNotFound         = "ComponentNotFound"
	CodeCyclicComponentReference  = "CyclicComponentReference"
	CodePageNotFound              = "PageNotFound"
	CodeUndefinedTemplateVariable = "UndefinedTemplateVariable"
	CodeUnsupportedLiteral        = "UnsupportedLiteral"
	CodeScriptSyntax              = "ScriptSyntax"
	CodeDuplicatePageName         = "DuplicatePageName"
	CodeNoPages                   = "NoPages"
	CodeReadFailed                = "ReadFailed"
	CodeInvalidConfig             = "InvalidConfig"
)

// HakaiError is a structured error with an optional source location.
type HakaiError struct {
	Kind        Kind
	Code        string
	Message     string
	Cause       error
	File        string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *HakaiError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if loc := e.Location(); loc != "" {
		parts = append(parts, loc)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Location returns "file:line:col", "file:line", "file" or "".
func (e *HakaiError) Location() string {
	if e.File == "" {
		return ""
	}
	location := e.File
	if e.Line > 0 {
		location += fmt.Sprintf(":%d", e.Line)
		if e.Column > 0 {
			location += fmt.Sprintf(":%d", e.Column)
		}
	}
	return location
}

// Unwrap returns the underlying cause error.
func (e *HakaiError) Unwrap() error {
	return e.Cause
}

// Is matches on Kind and Code.
func (e *HakaiError) Is(target error) bool {
	var t *HakaiError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithLocation adds file location information.
func (e *HakaiError) WithLocation(file string, line, column int) *HakaiError {
	e.File = file
	e.Line = line
	e.Column = column

	return e
}

// WithCause attaches an underlying error.
func (e *HakaiError) WithCause(cause error) *HakaiError {
	e.Cause = cause

	return e
}

func newError(kind Kind, code, message string, recoverable bool) *HakaiError {
	return &HakaiError{
		Kind:        kind,
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
	}
}

// NewInvalidExtension reports a source file without the component extension.
func NewInvalidExtension(path, ext string) *HakaiError {
	return newError(KindValidation, CodeInvalidExtension,
		fmt.Sprintf("Invalid file extension. Expected %s file but got: %s", ext, path), true)
}

// NewUnterminatedSection reports a section opened but never closed.
func NewUnterminatedSection(section, file string, line int) *HakaiError {
	return newError(KindValidation, CodeUnterminatedSection,
		fmt.Sprintf("<%s> section is never closed", section), true).
		WithLocation(file, line, 0)
}

// NewComponentNotFound names both searched locations.
func NewComponentNotFound(name, localPath, globalPath string) *HakaiError {
	return newError(KindResolution, CodeComponentNotFound,
		fmt.Sprintf("Component %s not found in local scope (%s) or global scope (%s)", name, localPath, globalPath), true)
}

// NewCyclicComponentReference reports a component that references itself
// through the given resolution chain.
func NewCyclicComponentReference(chain []string) *HakaiError {
	return newError(KindResolution, CodeCyclicComponentReference,
		fmt.Sprintf("Cyclic component reference: %s", strings.Join(chain, " -> ")), true)
}

// NewPageNotFound reports a URL path with no backing page chain.
func NewPageNotFound(urlPath string) *HakaiError {
	return newError(KindResolution, CodePageNotFound,
		fmt.Sprintf("No page found for path: %s", urlPath), true)
}

// NewUndefinedTemplateVariable reports an interpolation token with no binding.
func NewUndefinedTemplateVariable(name, file string, line, column int) *HakaiError {
	return newError(KindCompile, CodeUndefinedTemplateVariable,
		fmt.Sprintf("Template variable %q is not defined", name), true).
		WithLocation(file, line, column)
}

// NewUnsupportedLiteral is the non-fatal diagnostic for a const whose
// initializer is not a JSON scalar.
func NewUnsupportedLiteral(name, file string) *HakaiError {
	return newError(KindCompile, CodeUnsupportedLiteral,
		fmt.Sprintf("Unsupported type for variable %q", name), true).
		WithLocation(file, 0, 0)
}

// NewScriptSyntax reports a script section that does not parse.
func NewScriptSyntax(file string, line, column int) *HakaiError {
	return newError(KindCompile, CodeScriptSyntax, "Script section contains a syntax error", true).
		WithLocation(file, line, column)
}

// NewDuplicatePageName is fatal at startup.
func NewDuplicatePageName(page, scope, otherScope string) *HakaiError {
	return newError(KindValidation, CodeDuplicatePageName,
		fmt.Sprintf("Duplicate page name %q found in scopes %q and %q. Page names must be unique across all scopes.",
			page, scope, otherScope), false)
}

// NewNoPages reports an empty page chain handed to the compiler.
func NewNoPages() *HakaiError {
	return newError(KindInternal, CodeNoPages, "No paths provided to compile", true)
}

// NewReadFailed wraps an I/O failure on a project file.
func NewReadFailed(path string, cause error) *HakaiError {
	return newError(KindIO, CodeReadFailed, fmt.Sprintf("failed to read %s", path), true).
		WithCause(cause)
}

// NewInvalidConfig reports a configuration value that fails validation.
func NewInvalidConfig(message string) *HakaiError {
	return newError(KindConfig, CodeInvalidConfig, message, false)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var he *HakaiError
	if errors.As(err, &he) {
		return he.Recoverable
	}

	return false
}

// HasCode reports whether err, or anything it wraps, is a HakaiError with code.
func HasCode(err error, code string) bool {
	var he *HakaiError
	if errors.As(err, &he) {
		return he.Code == code
	}

	return false
}

// ClientMessage renders err as the human-readable diagnostic sent to
// browsers, suffixed with "at file:line:col" when the location is known.
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}

	var he *HakaiError
	if errors.As(err, &he) {
		msg := he.Message
		if he.Cause != nil {
			msg += ": " + he.Cause.Error()
		}
		if he.File != "" && he.Line > 0 && he.Column > 0 {
			return fmt.Sprintf("%s\nat %s:%d:%d", msg, he.File, he.Line, he.Column)
		}
		return msg
	}

	return err.Error()
}
