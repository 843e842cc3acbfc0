package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseISODate(t *testing.T) {
	d, err := ParseISODate("2024-02-29")
	if err != nil || d.String() != "2024-02-29" {
		t.Fatalf("unexpected result %v (err=%v)", d, err)
	}
	if _, err := ParseISODate("2024-02-31"); err == nil {
		t.Fatalf("expected error for non-existent day")
	}
}

func TestMoneySigned(t *testing.T) {
	if got := (Money{Cents: 500}).Signed(true); got.Cents != -500 {
		t.Fatalf("expense sign: got %d", got.Cents)
	}
	if got := (Money{Cents: -500}).Signed(false); got.Cents != 500 {
		t.Fatalf("income sign: got %d", got.Cents)
	}
}

func TestAutomationRuleValidate(t *testing.T) {
	good := AutomationRule{
		DayOfMonth:  31,
		Description: "rent",
		Amount:      Money{Cents: 100000},
		StartDate:   NewDate(2024, 1, 15),
		EndDate:     NewDate(2024, 4, 10),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []AutomationRule{
		{DayOfMonth: 0, StartDate: NewDate(2024, 1, 1)},
		{DayOfMonth: 32, StartDate: NewDate(2024, 1, 1)},
		{DayOfMonth: 5},
		{DayOfMonth: 5, StartDate: NewDate(2024, 3, 1), EndDate: NewDate(2024, 2, 1)},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
