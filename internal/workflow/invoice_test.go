package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
)

func TestApplyInvoice(t *testing.T) {
	now := time.Now()
	inv := &domain.Invoice{Status: domain.InvoiceStatusDraft}

	require.NoError(t, ApplyInvoice(inv, domain.InvoiceStatusIssued, now))
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
	require.NotNil(t, inv.IssuedAt)

	err := ApplyInvoice(inv, domain.InvoiceStatusPaid, now)
	var terr *InvoiceTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, []domain.InvoiceStatus{domain.InvoiceStatusOverdue, domain.InvoiceStatusCancelled}, terr.Allowed)
	assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
}

func TestSettle(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name   string
		status domain.InvoiceStatus
		due    time.Time
		paid   int64
		want   domain.InvoiceStatus
	}{
		{name: "partial", status: domain.InvoiceStatusIssued, due: future, paid: 400, want: domain.InvoiceStatusPartiallyPaid},
		{name: "full", status: domain.InvoiceStatusPartiallyPaid, due: future, paid: 1000, want: domain.InvoiceStatusPaid},
		{name: "over", status: domain.InvoiceStatusOverdue, due: past, paid: 1500, want: domain.InvoiceStatusPaid},
		{name: "refunded to zero", status: domain.InvoiceStatusPaid, due: future, paid: 0, want: domain.InvoiceStatusIssued},
		{name: "partial past due", status: domain.InvoiceStatusIssued, due: past, paid: 10, want: domain.InvoiceStatusOverdue},
		{name: "draft untouched", status: domain.InvoiceStatusDraft, due: future, paid: 1000, want: domain.InvoiceStatusDraft},
		{name: "cancelled untouched", status: domain.InvoiceStatusCancelled, due: future, paid: 1000, want: domain.InvoiceStatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &domain.Invoice{Status: tt.status, Total: 1000, DueDate: tt.due}
			Settle(inv, tt.paid, now)
			assert.Equal(t, tt.want, inv.Status)
			if tt.want == domain.InvoiceStatusPaid {
				require.NotNil(t, inv.PaidAt)
			} else {
				assert.Nil(t, inv.PaidAt)
			}
		})
	}
}
