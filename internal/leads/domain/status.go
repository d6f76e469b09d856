// Package domain models the lead lifecycle as an explicit state machine.
package domain

import (
	"fmt"

	"leadbroker_backend/platform/apperr"
)

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusAssigned  Status = "assigned"
	StatusClosed    Status = "closed"
)

// Ownership distinguishes leads sold outright from leads managed on commission.
type Ownership string

const (
	OwnershipSold    Ownership = "sold"
	OwnershipManaged Ownership = "managed"
)

// allowedTransitions is the single source of truth for lead status edges.
// A lead returns to available when a revenue-share assignment reports
// not_reached, which is why assigned -> available is a legal edge.
var allowedTransitions = map[Status][]Status{
	StatusNew:       {StatusAvailable, StatusReserved, StatusAssigned, StatusClosed},
	StatusAvailable: {StatusReserved, StatusAssigned, StatusClosed},
	StatusReserved:  {StatusAssigned, StatusAvailable, StatusClosed},
	StatusAssigned:  {StatusAvailable, StatusClosed},
	StatusClosed:    {},
}

// Valid reports whether s is a known lead status.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusClosed
}

// Assignable reports whether a lead in this status may receive a new assignment.
func (s Status) Assignable() bool {
	return s == StatusNew || s == StatusAvailable
}

// CanTransition reports whether moving from s to next is a defined edge.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates the edge from s to next and returns next, or a
// conflict error naming both states when the edge is not defined.
func (s Status) Transition(next Status) (Status, error) {
	if !next.Valid() {
		return s, apperr.Validation(fmt.Sprintf("unknown lead status %q", next))
	}
	if s == next {
		return s, nil
	}
	if !s.CanTransition(next) {
		return s, apperr.Conflict(fmt.Sprintf("lead status cannot move from %s to %s", s, next))
	}
	return next, nil
}
