package cob

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by the log, the materializer and the
// issues store. Callers branch on Code via the Is* helpers, which see
// through wrapping.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// IssueID identifies the affected issue, when known.
	IssueID ActionID

	// ActionID identifies the offending action, when known.
	ActionID ActionID
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeCausality indicates an action references a predecessor that is
	// not in the log, or references none at all.
	ErrCodeCausality ErrorCode = "CAUSALITY"

	// ErrCodeMissingCreate indicates a non-root action was appended to an
	// empty log.
	ErrCodeMissingCreate ErrorCode = "MISSING_CREATE"

	// ErrCodeIncompleteLog indicates materialization of a log with no root.
	ErrCodeIncompleteLog ErrorCode = "INCOMPLETE_LOG"

	// ErrCodeDuplicateID indicates a create collided with an existing issue.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeNotFound indicates an unknown issue id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidAction indicates a malformed op or a tampered action.
	ErrCodeInvalidAction ErrorCode = "INVALID_ACTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.IssueID != "" && e.ActionID != "":
		return fmt.Sprintf("%s: %s (issue=%s, action=%s)", e.Code, e.Message, e.IssueID.Short(), e.ActionID.Short())
	case e.IssueID != "":
		return fmt.Sprintf("%s: %s (issue=%s)", e.Code, e.Message, e.IssueID.Short())
	case e.ActionID != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionID.Short())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCausality reports whether err is a causality error.
func IsCausality(err error) bool { return CodeOf(err) == ErrCodeCausality }

// IsMissingCreate reports whether err is a missing-create error.
func IsMissingCreate(err error) bool { return CodeOf(err) == ErrCodeMissingCreate }

// IsIncompleteLog reports whether err is an incomplete-log error.
func IsIncompleteLog(err error) bool { return CodeOf(err) == ErrCodeIncompleteLog }

// IsDuplicateID reports whether err is a duplicate-id error.
func IsDuplicateID(err error) bool { return CodeOf(err) == ErrCodeDuplicateID }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsInvalidAction reports whether err is an invalid-action error.
func IsInvalidAction(err error) bool { return CodeOf(err) == ErrCodeInvalidAction }

// NewCausalityError creates an Error for an action whose predecessor is absent.
func NewCausalityError(actionID, missing ActionID) *Error {
	msg := "action references no prior action"
	if missing != "" {
		msg = fmt.Sprintf("predecessor %s is not in the log", missing.Short())
	}
	return &Error{Code: ErrCodeCausality, Message: msg, ActionID: actionID}
}

// NewMissingCreateError creates an Error for an edit appended before its root.
func NewMissingCreateError(actionID ActionID) *Error {
	return &Error{
		Code:     ErrCodeMissingCreate,
		Message:  "log has no create action",
		ActionID: actionID,
	}
}

// NewIncompleteLogError creates an Error for materializing a rootless log.
func NewIncompleteLogError() *Error {
	return &Error{Code: ErrCodeIncompleteLog, Message: "log has no create action"}
}

// NewDuplicateIDError creates an Error for a create that collides with an
// existing issue.
func NewDuplicateIDError(issueID ActionID) *Error {
	return &Error{Code: ErrCodeDuplicateID, Message: "issue already exists", IssueID: issueID}
}

// NewNotFoundError creates an Error for an unknown issue.
func NewNotFoundError(issueID ActionID) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "issue not found", IssueID: issueID}
}

// NewInvalidActionError creates an Error for a malformed action.
func NewInvalidActionError(actionID ActionID, message string) *Error {
	return &Error{Code: ErrCodeInvalidAction, Message: message, ActionID: actionID}
}
