package domain

import (
	"strings"
	"testing"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want int64
	}{
		{"exact", 450, 450},
		{"half rounds up", 449.5, 450},
		{"below half rounds down", 449.4, 449},
		{"above half rounds up", 449.6, 450},
		{"negative half away from zero", -449.5, -450},
		{"zero", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoundHalfUp(tc.in); got != tc.want {
				t.Fatalf("RoundHalfUp(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		pct    float64
		want   int64
	}{
		{"ten percent of 4500", 4500, 10, 450},
		{"rounding boundary half up", 4495, 10, 450},
		{"rounding boundary below half", 4494, 10, 449},
		{"fractional percentage", 1000, 12.5, 125},
		{"zero amount", 0, 10, 0},
		{"hundred percent", 4500, 100, 4500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PercentOf(tc.amount, tc.pct); got != tc.want {
				t.Fatalf("PercentOf(%d, %v) = %d, want %d", tc.amount, tc.pct, got, tc.want)
			}
		})
	}
}

func TestSplitTaxInclusive(t *testing.T) {
	cases := []struct {
		name    string
		gross   int64
		rate    float64
		wantNet int64
		wantTax int64
	}{
		{"standard vat", 4500, 0.21, 3719, 781},
		{"round gross", 12100, 0.21, 10000, 2100},
		{"one cent", 1, 0.21, 1, 0},
		{"zero gross", 0, 0.21, 0, 0},
		{"zero rate passes through", 4500, 0, 4500, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net, tax := SplitTaxInclusive(tc.gross, tc.rate)
			if net != tc.wantNet || tax != tc.wantTax {
				t.Fatalf("SplitTaxInclusive(%d, %v) = (%d, %d), want (%d, %d)", tc.gross, tc.rate, net, tax, tc.wantNet, tc.wantTax)
			}
			if net+tax != tc.gross {
				t.Fatalf("net %d + tax %d does not reassemble gross %d", net, tax, tc.gross)
			}
		})
	}
}

func TestFormatEUR(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{500, "€5.00"},
		{0, "€0.00"},
		{4450, "€44.50"},
		{123456, "€1,234.56"},
		{100000000, "€1,000,000.00"},
		{1, "€0.01"},
		{-500, "-€5.00"},
	}

	for _, tc := range cases {
		if got := FormatEUR(tc.amount); got != tc.want {
			t.Fatalf("FormatEUR(%d) = %q, want %q", tc.amount, got, tc.want)
		}
		if strings.ContainsAny(FormatEUR(tc.amount), "   ") {
			t.Fatalf("FormatEUR(%d) = %q contains a separator between symbol and amount", tc.amount, FormatEUR(tc.amount))
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{10, "10%"},
		{12.5, "12.5%"},
		{100, "100%"},
		{0, "0%"},
	}

	for _, tc := range cases {
		if got := FormatPercent(tc.pct); got != tc.want {
			t.Fatalf("FormatPercent(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}

func TestDisplayKey(t *testing.T) {
	variant := "v1"
	blank := "  "

	if got := DisplayKey("prod-1", nil); got != "prod-1" {
		t.Fatalf("DisplayKey without variant = %q", got)
	}
	if got := DisplayKey("prod-1", &variant); got != "prod-1:v1" {
		t.Fatalf("DisplayKey with variant = %q", got)
	}
	if got := DisplayKey("prod-1", &blank); got != "prod-1" {
		t.Fatalf("DisplayKey with blank variant = %q", got)
	}
}
