package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMoneyFromDecimalRoundsHalfUp(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"100", "100.00"},
		{"12.345", "12.35"},
		{"12.344", "12.34"},
		{"0.005", "0.01"},
		{"0.6", "0.60"},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.raw)
		if err != nil {
			t.Fatalf("parse %s: %v", c.raw, err)
		}
		if got := NewMoneyFromDecimal(d).String(); got != c.want {
			t.Errorf("NewMoneyFromDecimal(%s) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestNewNonNegativeMoneyRejectsNegative(t *testing.T) {
	if _, err := NewNonNegativeMoney(decimal.NewFromInt(-1)); err == nil {
		t.Fatal("expected error for negative amount")
	}
	m, err := NewNonNegativeMoney(decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.String() != "0.00" {
		t.Errorf("zero money = %s, want 0.00", m.String())
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m := NewMoneyFromDecimal(decimal.NewFromFloat(100.5))
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"100.50"` {
		t.Errorf("marshal = %s, want \"100.50\"", data)
	}

	var fromString Money
	if err := json.Unmarshal([]byte(`"12.345"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if fromString.String() != "12.35" {
		t.Errorf("unmarshal string = %s, want 12.35", fromString.String())
	}

	var fromNumber Money
	if err := json.Unmarshal([]byte(`99.9`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if fromNumber.String() != "99.90" {
		t.Errorf("unmarshal number = %s, want 99.90", fromNumber.String())
	}
}

func TestCommissionLevelValidate(t *testing.T) {
	for _, level := range []int{1, 3, 5} {
		if _, err := NewCommissionLevel(level); err != nil {
			t.Errorf("NewCommissionLevel(%d) unexpected error: %v", level, err)
		}
	}
	for _, level := range []int{0, 6, -1} {
		if _, err := NewCommissionLevel(level); err == nil {
			t.Errorf("NewCommissionLevel(%d) expected error", level)
		}
	}
}
