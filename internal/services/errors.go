package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrBackendUnavailable marks store failures. Callers may retry.
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")

	ErrReportNotFound      = fmt.Errorf("report %w", ErrNotFound)
	ErrRestrictionNotFound = fmt.Errorf("restriction %w", ErrNotFound)
	ErrModeratorNotFound   = fmt.Errorf("moderator %w", ErrNotFound)

	ErrReportClosed      = errors.New("report is resolved or dismissed and cannot change")
	ErrInvalidTransition = errors.New("invalid report status transition")
	ErrReportConflict    = errors.New("report was modified concurrently")
	ErrAlreadyModerator  = errors.New("user is already a moderator of this community")
)

// storeErr wraps a gorm failure as ErrBackendUnavailable, passing record
// not found through untouched.
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
