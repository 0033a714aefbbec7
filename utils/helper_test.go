package utils

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNetUnitCost(t *testing.T) {
	price := decimal.NewFromInt(110)
	rate := decimal.NewFromInt(10)

	net := NetUnitCost(price, rate, true)
	if !net.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("inclusive net = %s, want 100", net)
	}
	if !NetUnitCost(price, rate, false).Equal(price) {
		t.Fatalf("exclusive price must stay unchanged")
	}
	if !NetUnitCost(price, decimal.Zero, true).Equal(price) {
		t.Fatalf("zero rate must be a no-op")
	}
}

func TestTaxAmount(t *testing.T) {
	total := decimal.NewFromInt(110)
	rate := decimal.NewFromInt(10)

	if got := TaxAmount(total, rate, true); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("inclusive tax = %s, want 10", got)
	}
	if got := TaxAmount(decimal.NewFromInt(100), rate, false); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("exclusive tax = %s, want 10", got)
	}
	if !TaxAmount(total, decimal.Zero, true).IsZero() {
		t.Fatalf("zero rate must yield zero tax")
	}
}

func TestConvertToDateStripsTime(t *testing.T) {
	in := time.Date(2026, 3, 5, 17, 42, 9, 0, time.UTC)
	got, err := ConvertToDate(in, "UTC")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := ConvertToDate(in, "Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.NewFromFloat(10666.67)
	if !WithinTolerance(a, decimal.NewFromFloat(10666.665)) {
		t.Fatalf("0.005 delta should be within tolerance")
	}
	if WithinTolerance(a, decimal.NewFromFloat(10666.60)) {
		t.Fatalf("0.07 delta should be outside tolerance")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = SetCompanyIdInContext(ctx, "co-1")
	ctx = SetUserIdInContext(ctx, 42)
	ctx = SetUserNameInContext(ctx, "System")
	ctx = SetCorrelationIdInContext(ctx, "corr-1")

	if v, ok := GetCompanyIdFromContext(ctx); !ok || v != "co-1" {
		t.Fatalf("company id = %q/%v", v, ok)
	}
	if v, ok := GetUserIdFromContext(ctx); !ok || v != 42 {
		t.Fatalf("user id = %d/%v", v, ok)
	}
	if v, ok := GetUserNameFromContext(ctx); !ok || v != "System" {
		t.Fatalf("user name = %q/%v", v, ok)
	}
	if v, ok := GetCorrelationIdFromContext(ctx); !ok || v != "corr-1" {
		t.Fatalf("correlation id = %q/%v", v, ok)
	}
	if _, ok := GetCompanyIdFromContext(context.Background()); ok {
		t.Fatalf("empty context must not resolve a company id")
	}
}
