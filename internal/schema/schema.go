// Package schema validates JSON input documents (new issues and ops)
// against an embedded CUE schema before they are decoded.
//
// Validation here is about shape: required fields, closed field sets and
// enumerations. The cob package still validates every op it builds.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for validation failures.
const (
	ErrCodeSyntax  = "SYNTAX"
	ErrCodeType    = "UNKNOWN_TYPE"
	ErrCodeInvalid = "INVALID"
)

// ValidationError describes why a document does not match the schema.
type ValidationError struct {
	Code    string
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(e.Details, "; "))
}

// compiled holds the schema; cue values are not safe for concurrent
// building, so access goes through mu.
var (
	mu       sync.Mutex
	ctx      = cuecontext.New()
	compiled cue.Value
	loadErr  error
	loadOnce sync.Once
)

func load() (cue.Value, error) {
	loadOnce.Do(func() {
		compiled = ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		loadErr = compiled.Err()
	})
	return compiled, loadErr
}

// OpTypes returns the op types the schema knows, sorted.
func OpTypes() ([]string, error) {
	mu.Lock()
	defer mu.Unlock()

	s, err := load()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	iter, err := s.LookupPath(cue.ParsePath("#Ops")).Fields()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	var types []string
	for iter.Next() {
		types = append(types, iter.Selector().Unquoted())
	}
	slices.Sort(types)
	return types, nil
}

// ValidateOp checks a JSON op document.
func ValidateOp(data []byte) error {
	mu.Lock()
	defer mu.Unlock()

	s, err := load()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	doc, verr := compileDocument(data)
	if verr != nil {
		return verr
	}

	typ, err := doc.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return &ValidationError{Code: ErrCodeType, Message: "op document needs a string \"type\" field"}
	}
	def := s.LookupPath(cue.ParsePath("#Ops")).LookupPath(cue.MakePath(cue.Str(typ)))
	if !def.Exists() {
		return &ValidationError{Code: ErrCodeType, Message: fmt.Sprintf("unknown op type %q", typ)}
	}
	return check(def, doc, typ)
}

// ValidateNewIssue checks a JSON new-issue document.
func ValidateNewIssue(data []byte) error {
	mu.Lock()
	defer mu.Unlock()

	s, err := load()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	doc, verr := compileDocument(data)
	if verr != nil {
		return verr
	}
	return check(s.LookupPath(cue.ParsePath("#NewIssue")), doc, "new issue")
}

func compileDocument(data []byte) (cue.Value, *ValidationError) {
	doc := ctx.CompileBytes(data, cue.Filename("input.json"))
	if err := doc.Err(); err != nil {
		return cue.Value{}, &ValidationError{Code: ErrCodeSyntax, Message: "document is not valid JSON", Details: details(err)}
	}
	if doc.Kind() != cue.StructKind {
		return cue.Value{}, &ValidationError{Code: ErrCodeSyntax, Message: "document must be a JSON object"}
	}
	return doc, nil
}

func check(def, doc cue.Value, what string) error {
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("%s does not match schema", what),
			Details: details(err),
		}
	}
	return nil
}

// details flattens a cue error into one line per problem.
func details(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		out = append(out, msg)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
