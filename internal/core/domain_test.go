package core

import (
	"errors"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestCashFlowValidate(t *testing.T) {
	good := CashFlow{
		Type:        Expense,
		Amount:      Cents(100),
		OccurredAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "ok",
		AccountID:   1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []CashFlow{
		{Type: "TRANSFER", Amount: Cents(1), OccurredAt: good.OccurredAt},
		{Type: Income, Amount: Cents(0), OccurredAt: good.OccurredAt},
		{Type: Income, Amount: Cents(-5), OccurredAt: good.OccurredAt},
		{Type: Income, Amount: Cents(1)},
	}
	for i, b := range bads {
		err := b.Validate()
		if err == nil {
			t.Fatalf("bad case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("bad case %d: %v is not a validation error", i, err)
		}
	}
}

func TestCashFlowSigned(t *testing.T) {
	in := CashFlow{Type: Income, Amount: Cents(250)}
	out := CashFlow{Type: Expense, Amount: Cents(100)}
	if got := in.Signed().Add(out.Signed()); got.Cents != 150 {
		t.Errorf("signed sum = %d, want 150", got.Cents)
	}
}

func TestGoalProgressPercent(t *testing.T) {
	tests := []struct {
		name          string
		saved, target int64
		want          int
	}{
		{"zero target", 500, 0, 0},
		{"nothing saved", 0, 10000, 0},
		{"half", 5000, 10000, 50},
		{"rounds half up", 125, 1000, 13},
		{"one third", 100, 300, 33},
		{"two thirds", 200, 300, 67},
		{"over target", 12000, 10000, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Goal{SavedAmount: Cents(tt.saved), TargetAmount: Cents(tt.target)}
			if got := g.ProgressPercent(); got != tt.want {
				t.Errorf("ProgressPercent() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorClasses(t *testing.T) {
	if !errors.Is(ErrInsufficientFunds, ErrConflict) {
		t.Error("ErrInsufficientFunds should be a conflict")
	}
	if !errors.Is(ErrNoCashAccount, ErrConflict) {
		t.Error("ErrNoCashAccount should be a conflict")
	}
	if errors.Is(ErrInvalidAmount, ErrConflict) {
		t.Error("ErrInvalidAmount should not be a conflict")
	}
	if !errors.Is(NotFoundf("goal %d", 3), ErrNotFound) {
		t.Error("NotFoundf should wrap ErrNotFound")
	}
}

func TestNameKey(t *testing.T) {
	tests := map[string]string{
		"  Food ":          "food",
		"Goal   Transfer":  "goal transfer",
		"SUBSCRIPTIONS":    "subscriptions",
		"\tEating\n Out  ": "eating out",
	}
	for in, want := range tests {
		if got := NameKey(in); got != want {
			t.Errorf("NameKey(%q) = %q, want %q", in, got, want)
		}
	}
	if got := NormalizeName("  Eating   Out "); got != "Eating Out" {
		t.Errorf("NormalizeName() = %q", got)
	}
}

func TestYearMonthRange(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ym, err := ParseYearMonth("2024-02", time.Now())
	if err != nil {
		t.Fatalf("ParseYearMonth() error = %v", err)
	}
	start, end := ym.Range(loc)
	if start.Day() != 1 || start.Hour() != 0 || start.Location() != loc {
		t.Errorf("start = %v", start)
	}
	if end.Day() != 29 || end.Hour() != 23 || end.Nanosecond() != 999999999 {
		t.Errorf("end = %v", end)
	}

	if _, err := ParseYearMonth("2024-13", time.Now()); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseYearMonth(2024-13) error = %v, want validation", err)
	}
	if got := (YearMonth{Year: 2024, Month: time.January}).Prev().String(); got != "2023-12" {
		t.Errorf("Prev() = %s", got)
	}
}
