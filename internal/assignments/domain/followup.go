// Package domain models the assignment lifecycle and the revenue-share
// follow-up state machine.
package domain

import (
	"fmt"
	"math"
	"time"

	leaddomain "leadbroker_backend/internal/leads/domain"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/workdays"
)

// Assignment statuses.
const (
	StatusPending    = "pending"
	StatusSent       = "sent"
	StatusInProgress = "in_progress"
	StatusScheduled  = "scheduled"
	StatusReturned   = "returned"
	StatusSuccess    = "success"
)

// Pricing models an assignment can be created under. "single" is the
// ad-hoc purchase used when no contract applies, "package" marks
// assignments created by a package delivery.
const (
	PricingFixed        = "fixed"
	PricingSingle       = "single"
	PricingSubscription = "subscription"
	PricingRevenueShare = "revenue_share"
	PricingPackage      = "package"
)

// Follow-up responses a broker can submit.
const (
	ResponseNotReached = "not_reached"
	ResponseReached    = "reached"
	ResponseScheduled  = "scheduled"
	ResponseClosed     = "closed"
)

// FollowupInterval is the business-day gap between follow-up requests.
const FollowupInterval = 3

// ResubmitCooldown guards against a broker resubmitting right after a
// non-terminal response, before the next reminder went out.
const ResubmitCooldown = time.Hour

// PaymentGated reports whether delivery waits for a paid invoice.
func PaymentGated(pricingModel string) bool {
	return pricingModel == PricingFixed || pricingModel == PricingSingle
}

// FollowupOutcome is the effect of one submitted follow-up response.
type FollowupOutcome struct {
	AssignmentStatus string
	LeadStatus       leaddomain.Status
	ScheduleNext     bool
	Terminal         bool
}

// followupTransitions maps each accepted response to its outcome.
var followupTransitions = map[string]FollowupOutcome{
	ResponseNotReached: {AssignmentStatus: StatusReturned, LeadStatus: leaddomain.StatusAvailable, ScheduleNext: false, Terminal: true},
	ResponseReached:    {AssignmentStatus: StatusInProgress, LeadStatus: leaddomain.StatusAssigned, ScheduleNext: true, Terminal: false},
	ResponseScheduled:  {AssignmentStatus: StatusScheduled, LeadStatus: leaddomain.StatusAssigned, ScheduleNext: true, Terminal: false},
	ResponseClosed:     {AssignmentStatus: StatusSuccess, LeadStatus: leaddomain.StatusClosed, ScheduleNext: false, Terminal: true},
}

// IsTerminalResponse reports whether a stored response permits no further
// submissions.
func IsTerminalResponse(response string) bool {
	return response == ResponseNotReached || response == ResponseClosed
}

// ApplyFollowup validates a submitted response against the current state
// and returns the resulting outcome. now is the submission time, used for
// the resubmit cooldown.
func ApplyFollowup(current FollowupState, response string, now time.Time) (FollowupOutcome, error) {
	outcome, ok := followupTransitions[response]
	if !ok {
		return FollowupOutcome{}, apperr.Validation(fmt.Sprintf("unknown follow-up response %q", response))
	}

	if current.Response != nil && IsTerminalResponse(*current.Response) {
		return FollowupOutcome{}, apperr.Conflict("follow-up is finalized and cannot be changed")
	}
	if current.InCooldown(now) {
		return FollowupOutcome{}, apperr.Conflict("a response was just recorded, wait for the next follow-up request")
	}

	return outcome, nil
}

// FollowupState is the follow-up portion of an assignment row.
type FollowupState struct {
	Response    *string
	RespondedAt *time.Time
	SentAt      *time.Time
}

// InCooldown reports whether a fresh non-terminal response blocks
// resubmission: the broker answered less than ResubmitCooldown ago and the
// next reminder has not been sent yet.
func (f FollowupState) InCooldown(now time.Time) bool {
	if f.Response == nil || IsTerminalResponse(*f.Response) {
		return false
	}
	if f.RespondedAt == nil || f.SentAt != nil {
		return false
	}
	return now.Sub(*f.RespondedAt) < ResubmitCooldown
}

// NextFollowupDate computes the next follow-up due date.
func NextFollowupDate(from time.Time) time.Time {
	return workdays.AddBusinessDays(from, FollowupInterval)
}

// CommissionCents computes the commission owed on a closed revenue-share
// assignment, rounded to the nearest cent.
func CommissionCents(amountCents int64, percent float64) int64 {
	return int64(math.Round(float64(amountCents) * percent / 100))
}
