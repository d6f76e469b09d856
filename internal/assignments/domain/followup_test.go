package domain

import (
	"testing"
	"time"

	leaddomain "leadbroker_backend/internal/leads/domain"
)

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestApplyFollowupTransitionTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		response       string
		wantAssignment string
		wantLead       leaddomain.Status
		wantNext       bool
		wantTerminal   bool
	}{
		{ResponseNotReached, StatusReturned, leaddomain.StatusAvailable, false, true},
		{ResponseReached, StatusInProgress, leaddomain.StatusAssigned, true, false},
		{ResponseScheduled, StatusScheduled, leaddomain.StatusAssigned, true, false},
		{ResponseClosed, StatusSuccess, leaddomain.StatusClosed, false, true},
	}

	for _, tc := range cases {
		outcome, err := ApplyFollowup(FollowupState{}, tc.response, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.response, err)
		}
		if outcome.AssignmentStatus != tc.wantAssignment {
			t.Fatalf("%s: assignment status %s, want %s", tc.response, outcome.AssignmentStatus, tc.wantAssignment)
		}
		if outcome.LeadStatus != tc.wantLead {
			t.Fatalf("%s: lead status %s, want %s", tc.response, outcome.LeadStatus, tc.wantLead)
		}
		if outcome.ScheduleNext != tc.wantNext {
			t.Fatalf("%s: schedule next %v, want %v", tc.response, outcome.ScheduleNext, tc.wantNext)
		}
		if outcome.Terminal != tc.wantTerminal {
			t.Fatalf("%s: terminal %v, want %v", tc.response, outcome.Terminal, tc.wantTerminal)
		}
	}
}

func TestApplyFollowupRejectsAfterTerminalResponse(t *testing.T) {
	now := time.Now()
	for _, stored := range []string{ResponseNotReached, ResponseClosed} {
		state := FollowupState{Response: strPtr(stored)}
		if _, err := ApplyFollowup(state, ResponseReached, now); err == nil {
			t.Fatalf("stored %s: expected rejection", stored)
		}
	}
}

func TestApplyFollowupRejectsUnknownResponse(t *testing.T) {
	if _, err := ApplyFollowup(FollowupState{}, "maybe", time.Now()); err == nil {
		t.Fatal("expected error for unknown response")
	}
}

func TestApplyFollowupCooldown(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// Non-terminal response 10 minutes ago, reminder not yet sent: blocked.
	state := FollowupState{
		Response:    strPtr(ResponseReached),
		RespondedAt: timePtr(now.Add(-10 * time.Minute)),
	}
	if _, err := ApplyFollowup(state, ResponseScheduled, now); err == nil {
		t.Fatal("expected cooldown rejection")
	}

	// Same response but the next reminder already went out: allowed.
	state.SentAt = timePtr(now.Add(-time.Minute))
	if _, err := ApplyFollowup(state, ResponseScheduled, now); err != nil {
		t.Fatalf("unexpected error after reminder sent: %v", err)
	}

	// Response older than the cooldown: allowed.
	state = FollowupState{
		Response:    strPtr(ResponseReached),
		RespondedAt: timePtr(now.Add(-2 * time.Hour)),
	}
	if _, err := ApplyFollowup(state, ResponseClosed, now); err != nil {
		t.Fatalf("unexpected error after cooldown: %v", err)
	}
}

func TestNextFollowupDateSkipsWeekends(t *testing.T) {
	friday := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	if got := NextFollowupDate(friday); got.Weekday() != time.Wednesday {
		t.Fatalf("from Friday: got %s", got.Weekday())
	}

	saturday := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	if got := NextFollowupDate(saturday); got.Weekday() != time.Thursday {
		t.Fatalf("from Saturday: got %s", got.Weekday())
	}
}

func TestCommissionCents(t *testing.T) {
	// 500.00 at 50% is 250.00.
	if got := CommissionCents(50000, 50); got != 25000 {
		t.Fatalf("got %d", got)
	}
	if got := CommissionCents(100000, 12.5); got != 12500 {
		t.Fatalf("got %d", got)
	}
	// Rounds to the nearest cent.
	if got := CommissionCents(333, 33.3); got != 111 {
		t.Fatalf("got %d", got)
	}
}

func TestPaymentGated(t *testing.T) {
	if !PaymentGated(PricingFixed) || !PaymentGated(PricingSingle) {
		t.Fatal("fixed and single must gate on payment")
	}
	if PaymentGated(PricingRevenueShare) || PaymentGated(PricingSubscription) || PaymentGated(PricingPackage) {
		t.Fatal("immediate models must not gate on payment")
	}
}
