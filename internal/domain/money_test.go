package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

func TestMoneyMinorRoundTrip(t *testing.T) {
	m := MoneyFromMinor(1250050, NGN)
	if got := m.Amount.StringFixed(2); got != "12500.50" {
		t.Fatalf("expected 12500.50 got %s", got)
	}
	if got := m.Minor(); got != 1250050 {
		t.Fatalf("expected minor 1250050 got %d", got)
	}
}

func TestMoneyAdd(t *testing.T) {
	a := MoneyFromMinor(1000, NGN)
	b := MoneyFromMinor(250, NGN)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.Minor() != 1250 {
		t.Fatalf("expected minor 1250 got %d", sum.Minor())
	}

	usd := MoneyFromMinor(100, currency.USD)
	if _, err := a.Add(usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch got %v", err)
	}
}

func TestMoneyMulInt(t *testing.T) {
	unit := NewMoney(decimal.RequireFromString("45000"), NGN)
	total := unit.MulInt(3)
	if got := total.Amount.StringFixed(2); got != "135000.00" {
		t.Fatalf("expected 135000.00 got %s", got)
	}
}

func TestCartItemLineTotal(t *testing.T) {
	item := CartItem{
		ListingID: "lst_1",
		UnitPrice: MoneyFromMinor(4500000, NGN),
		Quantity:  2,
	}
	if got := item.LineTotal().Minor(); got != 9000000 {
		t.Fatalf("expected line total 9000000 got %d", got)
	}
}

func TestUserProfileHelpers(t *testing.T) {
	p := UserProfile{Email: "amina@kraal.test", Roles: []Role{RoleBuyer}}
	if p.DisplayName() != "amina@kraal.test" {
		t.Fatalf("expected email fallback got %q", p.DisplayName())
	}
	p.FirstName = "Amina"
	p.LastName = "Bello"
	if p.DisplayName() != "Amina Bello" {
		t.Fatalf("expected full name got %q", p.DisplayName())
	}
	if !p.HasRole(RoleBuyer) || p.HasRole(RoleSeller) {
		t.Fatal("unexpected role membership")
	}
}
