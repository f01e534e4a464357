package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the entity does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals malformed or missing fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a duplicate or a concurrent operation in flight.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized means the caller is missing or lacks the role for the operation.
	ErrUnauthorized = errors.New("unauthorized")
)

// RejectionError is a business-rule refusal whose Reason is shown to the
// customer as is (coupon not applicable, order not cancellable, out of stock).
// Code is a coarse machine-readable class used for metrics.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &RejectionError{Code: "rule", Reason: fmt.Sprintf(format, args...)}
}

func rejectAs(code, format string, args ...any) error {
	return &RejectionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err carries a customer-facing rejection.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Detail strips the sentinel prefix so "conflict: checkout already in
// progress" is shown as "checkout already in progress".
func Detail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrNotFound, ErrInvalidInput, ErrConflict, ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}

// isUniqueViolation recognises unique index failures from both sqlite and postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique") || strings.Contains(s, "duplicate key")
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
