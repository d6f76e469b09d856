package domain

import "testing"

func TestTransitionAllowsDefinedEdges(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusNew, StatusAvailable},
		{StatusNew, StatusAssigned},
		{StatusAvailable, StatusReserved},
		{StatusAvailable, StatusAssigned},
		{StatusReserved, StatusAssigned},
		{StatusReserved, StatusAvailable},
		{StatusAssigned, StatusAvailable},
		{StatusAssigned, StatusClosed},
	}

	for _, tc := range cases {
		got, err := tc.from.Transition(tc.to)
		if err != nil {
			t.Fatalf("transition %s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if got != tc.to {
			t.Fatalf("transition %s -> %s: got %s", tc.from, tc.to, got)
		}
	}
}

func TestTransitionRejectsUndefinedEdges(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusClosed, StatusAvailable},
		{StatusClosed, StatusAssigned},
		{StatusAssigned, StatusReserved},
		{StatusAvailable, StatusNew},
	}

	for _, tc := range cases {
		got, err := tc.from.Transition(tc.to)
		if err == nil {
			t.Fatalf("transition %s -> %s: expected error", tc.from, tc.to)
		}
		if got != tc.from {
			t.Fatalf("transition %s -> %s: state changed to %s on rejected edge", tc.from, tc.to, got)
		}
	}
}

func TestTransitionSameStateIsNoop(t *testing.T) {
	got, err := StatusAssigned.Transition(StatusAssigned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != StatusAssigned {
		t.Fatalf("got %s", got)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	if _, err := StatusNew.Transition(Status("archived")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestAssignable(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusAvailable} {
		if !s.Assignable() {
			t.Fatalf("%s should be assignable", s)
		}
	}
	for _, s := range []Status{StatusReserved, StatusAssigned, StatusClosed} {
		if s.Assignable() {
			t.Fatalf("%s should not be assignable", s)
		}
	}
}
