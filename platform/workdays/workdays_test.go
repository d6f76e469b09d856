package workdays

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestAddBusinessDays_FromFriday(t *testing.T) {
	friday := date(2025, time.March, 7)
	if friday.Weekday() != time.Friday {
		t.Fatalf("fixture is not a Friday: %s", friday.Weekday())
	}

	got := AddBusinessDays(friday, 3)
	if got.Weekday() != time.Wednesday {
		t.Fatalf("expected Wednesday, got %s", got.Weekday())
	}
	if got.Day() != 12 {
		t.Fatalf("expected March 12, got March %d", got.Day())
	}
}

func TestAddBusinessDays_FromSaturday(t *testing.T) {
	saturday := date(2025, time.March, 8)
	if saturday.Weekday() != time.Saturday {
		t.Fatalf("fixture is not a Saturday: %s", saturday.Weekday())
	}

	got := AddBusinessDays(saturday, 3)
	if got.Weekday() != time.Thursday {
		t.Fatalf("expected Thursday, got %s", got.Weekday())
	}
	if got.Day() != 13 {
		t.Fatalf("expected March 13, got March %d", got.Day())
	}
}

func TestAddBusinessDays_FromSunday(t *testing.T) {
	sunday := date(2025, time.March, 9)
	if sunday.Weekday() != time.Sunday {
		t.Fatalf("fixture is not a Sunday: %s", sunday.Weekday())
	}

	got := AddBusinessDays(sunday, 3)
	if got.Weekday() != time.Thursday {
		t.Fatalf("expected Thursday, got %s", got.Weekday())
	}
	if got.Day() != 13 {
		t.Fatalf("expected March 13, got March %d", got.Day())
	}
}

func TestNextBusinessDay_FromSaturday(t *testing.T) {
	saturday := date(2025, time.March, 8)
	got := NextBusinessDay(saturday)
	if got.Weekday() != time.Monday || got.Day() != 10 {
		t.Fatalf("expected Monday March 10, got %s March %d", got.Weekday(), got.Day())
	}
}

func TestAddBusinessDays_StartDateExcluded(t *testing.T) {
	monday := date(2025, time.March, 10)
	got := AddBusinessDays(monday, 1)
	if got.Day() != 11 {
		t.Fatalf("expected Tuesday March 11, got March %d", got.Day())
	}
}

func TestAddBusinessDays_Zero(t *testing.T) {
	day := date(2025, time.March, 9)
	if got := AddBusinessDays(day, 0); !got.Equal(day) {
		t.Fatalf("expected unchanged date, got %v", got)
	}
}

func TestNextBusinessDay_NeverWeekend(t *testing.T) {
	start := date(2025, time.January, 1)
	for i := 0; i < 30; i++ {
		day := start.AddDate(0, 0, i)
		next := NextBusinessDay(day)
		if !IsBusinessDay(next) {
			t.Fatalf("next business day after %s is %s", day.Weekday(), next.Weekday())
		}
		if !next.After(day) {
			t.Fatalf("next business day %v not after %v", next, day)
		}
	}
}
