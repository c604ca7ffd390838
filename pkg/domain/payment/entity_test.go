package payment

import (
	"testing"

	"github.com/meterly/api/pkg/domain/shared"
)

func pendingPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(NewPaymentParams{
		TenantID:  shared.NewID(),
		AccountID: shared.NewID(),
		Amount:    9900,
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("NewPayment() error = %v", err)
	}
	return p
}

func succeededPayment(t *testing.T) *Payment {
	t.Helper()
	p := pendingPayment(t)
	if err := p.MarkSucceeded("gw_123"); err != nil {
		t.Fatalf("MarkSucceeded() error = %v", err)
	}
	return p
}

func TestNewPayment(t *testing.T) {
	tests := []struct {
		name     string
		tenantID shared.ID
		amount   int64
		currency string
		wantErr  bool
	}{
		{"valid", shared.NewID(), 9900, "usd", false},
		{"zero tenant", shared.ID{}, 9900, "usd", true},
		{"zero amount", shared.NewID(), 0, "usd", true},
		{"negative amount", shared.NewID(), -100, "usd", true},
		{"bad currency", shared.NewID(), 9900, "dollars", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPayment(NewPaymentParams{
				TenantID:  tt.tenantID,
				AccountID: shared.NewID(),
				Amount:    tt.amount,
				Currency:  tt.currency,
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPayment() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if p.Status() != StatusPending {
					t.Errorf("NewPayment() status = %v, want %v", p.Status(), StatusPending)
				}
				if p.Currency() != "USD" {
					t.Errorf("NewPayment() currency = %v, want USD", p.Currency())
				}
			}
		})
	}
}

func TestPayment_MarkSucceeded(t *testing.T) {
	p := pendingPayment(t)

	if err := p.MarkSucceeded("gw_123"); err != nil {
		t.Fatalf("MarkSucceeded() error = %v", err)
	}
	if p.Status() != StatusSucceeded {
		t.Errorf("status = %v, want %v", p.Status(), StatusSucceeded)
	}
	if p.GatewayPaymentID() != "gw_123" {
		t.Errorf("gateway id = %v, want gw_123", p.GatewayPaymentID())
	}

	if err := p.MarkSucceeded("gw_456"); err == nil {
		t.Error("MarkSucceeded() on succeeded payment should fail")
	}
}

func TestPayment_MarkFailed(t *testing.T) {
	p := pendingPayment(t)

	if err := p.MarkFailed("card declined"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if p.Status() != StatusFailed {
		t.Errorf("status = %v, want %v", p.Status(), StatusFailed)
	}

	if err := p.MarkFailed("again"); err == nil {
		t.Error("MarkFailed() on failed payment should fail")
	}
}

func TestPayment_Refund(t *testing.T) {
	t.Run("partial then full", func(t *testing.T) {
		p := succeededPayment(t)

		if err := p.Refund(3000); err != nil {
			t.Fatalf("Refund() error = %v", err)
		}
		if p.Status() != StatusPartiallyRefunded {
			t.Errorf("status = %v, want %v", p.Status(), StatusPartiallyRefunded)
		}

		if err := p.Refund(6900); err != nil {
			t.Fatalf("Refund() error = %v", err)
		}
		if p.Status() != StatusRefunded {
			t.Errorf("status = %v, want %v", p.Status(), StatusRefunded)
		}
		if p.RefundedAmount() != 9900 {
			t.Errorf("refunded = %d, want 9900", p.RefundedAmount())
		}
	})

	t.Run("over-refund rejected", func(t *testing.T) {
		p := succeededPayment(t)

		if err := p.Refund(10000); err == nil {
			t.Error("Refund() beyond original amount should fail")
		} else if !shared.IsStateConflict(err) {
			t.Errorf("Refund() error = %v, want state conflict", err)
		}
		if p.RefundedAmount() != 0 {
			t.Errorf("refunded = %d, want 0 after rejected refund", p.RefundedAmount())
		}
	})

	t.Run("cumulative over-refund rejected", func(t *testing.T) {
		p := succeededPayment(t)

		if err := p.Refund(9000); err != nil {
			t.Fatalf("Refund() error = %v", err)
		}
		if err := p.Refund(1000); err == nil {
			t.Error("cumulative refund beyond original amount should fail")
		}
	})

	t.Run("refund of pending payment rejected", func(t *testing.T) {
		p := pendingPayment(t)
		if err := p.Refund(100); err == nil {
			t.Error("Refund() on pending payment should fail")
		}
	})
}
