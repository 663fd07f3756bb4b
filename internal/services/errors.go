package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
)

// ValidationError reports malformed input, naming each offending field.
// Always recoverable by the caller correcting the input.
type ValidationError struct {
	Fields map[string]string // field name -> problem
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Kind string // e.g. "inquiry", "agent"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// FollowUpNotAllowedError reports a failed follow-up precondition. The caller
// should suppress the action rather than retry.
type FollowUpNotAllowedError struct {
	Reason string
}

func (e *FollowUpNotAllowedError) Error() string {
	return "follow-up not allowed: " + e.Reason
}

// InvalidTransitionError reports a status change the transition table forbids.
type InvalidTransitionError struct {
	From models.InquiryStatus
	To   models.InquiryStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}
