package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrMemberNotFound   = errors.New("no user with that email")
	ErrDuplicateMember  = errors.New("user is already a member")
	ErrOwnerProtected   = errors.New("owner membership cannot be removed or changed")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidInput = errors.New("invalid input")
)

// Error records the operation and subjects of a failed call.
// The wrapped error chain always contains one of the sentinels above.
type Error struct {
	Op        string
	ProjectID string
	UserID    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.ProjectID != "" {
		fmt.Fprintf(&b, " project=%s", e.ProjectID)
	}
	if e.UserID != "" {
		fmt.Fprintf(&b, " user=%s", e.UserID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with operation context. A nil err returns nil.
func E(op, projectID, userID string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, ProjectID: projectID, UserID: userID, Err: err}
}

// Unavailable marks a collaborator failure so callers can tell "try again"
// apart from "you may not do this".
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrNotAuthenticated, "not_authenticated"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrMemberNotFound, "member_not_found"},
	{ErrNotFound, "not_found"},
	{ErrDuplicateMember, "duplicate_member"},
	{ErrOwnerProtected, "owner_protected"},
	{ErrInvalidRole, "invalid_role"},
	{ErrInvalidInput, "invalid_input"},
	{ErrStoreUnavailable, "store_unavailable"},
}

// Code returns a stable message key for err, suitable for localization.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// Retryable reports whether the failure is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
