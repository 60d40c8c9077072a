package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
)

func TestComputeTax(t *testing.T) {
	tests := []struct {
		subtotal int64
		bp       int
		want     int64
	}{
		{subtotal: 100000, bp: 1500, want: 15000},
		{subtotal: 333, bp: 1500, want: 50},
		{subtotal: 10, bp: 500, want: 1},
		{subtotal: 9, bp: 500, want: 0},
		{subtotal: 100000, bp: 0, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeTax(tt.subtotal, tt.bp), "subtotal=%d bp=%d", tt.subtotal, tt.bp)
	}
}

// invoiced returns an issued invoice of 1150.00 SAR for a fresh submitted request.
func (h *harness) invoiced(t *testing.T, customer *domain.Customer) *domain.Invoice {
	t.Helper()
	req := h.advanceTo(t, h.draft(t, customer), domain.RequestStatusSubmitted)
	inv, err := h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 100000, Issue: true})
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceStatusIssued, inv.Status)
	return inv
}

func TestInvoiceCreateComputesTotals(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	req := h.advanceTo(t, h.draft(t, customer), domain.RequestStatusSubmitted)

	inv, err := h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 100000, Notes: " first "})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, int64(15000), inv.TaxAmount)
	assert.Equal(t, int64(115000), inv.Total)
	assert.Equal(t, "SAR", inv.Currency)
	assert.Equal(t, customer.ID, inv.CustomerID)
	assert.Equal(t, "first", inv.Notes)
	assert.Equal(t, h.clock().AddDate(0, 0, 30), inv.DueDate)
	assert.Empty(t, h.eventsOf(events.EventInvoiceIssued))

	_, err = h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID})
	requireCode(t, err, "VALIDATION_FAILED")

	past := h.clock().AddDate(0, 0, -2)
	_, err = h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 1, DueDate: &past})
	requireCode(t, err, "VALIDATION_FAILED")

	draft := h.draft(t, customer)
	_, err = h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: draft.ID, Subtotal: 1000})
	requireCode(t, err, "BAD_REQUEST")
}

func TestInvoiceIssueNotifiesCustomer(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	inv := h.invoiced(t, customer)
	require.NotNil(t, inv.IssuedAt)

	issued := h.eventsOf(events.EventInvoiceIssued)
	require.Len(t, issued, 1)
	payload := issued[0].Payload.(events.InvoiceIssuedPayload)
	assert.Equal(t, inv.InvoiceNumber, payload.InvoiceNumber)
	assert.Equal(t, int64(115000), payload.Total)

	inbox, _, err := h.notifications.List(h.ctx, customer, false, 20, 0)
	require.NoError(t, err)
	var found bool
	for _, n := range inbox {
		if n.Type == domain.NotificationInvoiceIssued {
			found = true
			assert.Contains(t, n.Message, "1150.00 SAR")
		}
	}
	assert.True(t, found)

	_, err = h.invoices.UpdateStatus(h.ctx, h.admin, inv.ID, domain.InvoiceStatusPaid)
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Equal(t, domain.InvoiceStatusIssued, de.Details["from"])
}

func TestCustomersNeverSeeDraftInvoices(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	req := h.advanceTo(t, h.draft(t, customer), domain.RequestStatusSubmitted)
	draft, err := h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 5000})
	require.NoError(t, err)
	issued := h.invoiced(t, customer)

	_, err = h.invoices.GetForCustomer(h.ctx, customer.ID, draft.ID)
	requireCode(t, err, "NOT_FOUND")
	got, err := h.invoices.GetForCustomer(h.ctx, customer.ID, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)

	other := h.customer(t, "other@example.com")
	_, err = h.invoices.GetForCustomer(h.ctx, other.ID, issued.ID)
	requireCode(t, err, "NOT_FOUND")

	items, total, err := h.invoices.ListForCustomer(h.ctx, customer.ID, repository.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, issued.ID, items[0].ID)

	items, total, err = h.invoices.ListForCustomer(h.ctx, customer.ID, repository.InvoiceFilter{
		Statuses: []domain.InvoiceStatus{domain.InvoiceStatusDraft},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestMarkOverdue(t *testing.T) {
	h := newHarness(t)
	inv := h.invoiced(t, h.customer(t, "owner@example.com"))

	n, err := h.invoices.MarkOverdue(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.advance(31 * 24 * time.Hour)
	n, err = h.invoices.MarkOverdue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.invoices.Get(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, got.Status)

	n, err = h.invoices.MarkOverdue(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPartialThenFullPayment(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	inv := h.invoiced(t, customer)

	_, partial, err := h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{
		Amount: 50000, Method: domain.PaymentMethodBankTransfer, Reference: "TRX-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, partial.Status)
	assert.Equal(t, int64(50000), partial.AmountPaid)
	assert.Nil(t, partial.PaidAt)

	_, _, err = h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 65001, Method: domain.PaymentMethodCash})
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Equal(t, int64(65000), de.Details["outstanding"])

	_, paid, err := h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 65000, Method: domain.PaymentMethodCash})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, int64(115000), paid.AmountPaid)
	require.NotNil(t, paid.PaidAt)

	_, _, err = h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 1, Method: domain.PaymentMethodCash})
	requireCode(t, err, "BAD_REQUEST")

	assert.Len(t, h.eventsOf(events.EventPaymentCompleted), 2)
	payments, err := h.payments.ListByInvoice(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestPaymentValidation(t *testing.T) {
	h := newHarness(t)
	inv := h.invoiced(t, h.customer(t, "owner@example.com"))

	_, _, err := h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 100, Method: "BARTER"})
	requireCode(t, err, "VALIDATION_FAILED")
	_, _, err = h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 0, Method: domain.PaymentMethodCash})
	requireCode(t, err, "VALIDATION_FAILED")

	req := h.advanceTo(t, h.draft(t, h.customer(t, "second@example.com")), domain.RequestStatusSubmitted)
	draft, err := h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 1000})
	require.NoError(t, err)
	_, _, err = h.payments.Record(h.ctx, h.admin, draft.ID, PaymentInput{Amount: 100, Method: domain.PaymentMethodCash})
	requireCode(t, err, "BAD_REQUEST")
}

func TestConcurrentPaymentsStayWithinTotal(t *testing.T) {
	h := newHarness(t)
	inv := h.invoiced(t, h.customer(t, "owner@example.com"))

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 20000, Method: domain.PaymentMethodCash})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, "BAD_REQUEST")
	}
	assert.Equal(t, 5, succeeded)

	settled, err := h.invoices.Get(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), settled.AmountPaid)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, settled.Status)
	payments, err := h.payments.ListByInvoice(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 5)
}

func TestConfirmRechecksBalance(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	inv := h.invoiced(t, customer)

	first, err := h.payments.Submit(h.ctx, customer, inv.ID, PaymentInput{Amount: 115000, Method: domain.PaymentMethodBankTransfer})
	require.NoError(t, err)
	second, err := h.payments.Submit(h.ctx, customer, inv.ID, PaymentInput{Amount: 115000, Method: domain.PaymentMethodBankTransfer})
	require.NoError(t, err)

	_, settled, err := h.payments.Confirm(h.ctx, h.admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(115000), settled.AmountPaid)

	_, _, err = h.payments.Confirm(h.ctx, h.admin, second.ID)
	requireCode(t, err, "BAD_REQUEST")

	payments, err := h.payments.ListByInvoice(h.ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, domain.PaymentStatusPending, payments[1].Status)
	current, err := h.invoices.Get(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(115000), current.AmountPaid)
}

func TestSubmittedPaymentConfirmAndReject(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	inv := h.invoiced(t, customer)

	_, err := h.payments.Submit(h.ctx, h.customer(t, "other@example.com"), inv.ID, PaymentInput{
		Amount: 1000, Method: domain.PaymentMethodBankTransfer,
	})
	requireCode(t, err, "NOT_FOUND")

	pending, err := h.payments.Submit(h.ctx, customer, inv.ID, PaymentInput{
		Amount: 115000, Method: domain.PaymentMethodBankTransfer, Reference: "TRX-9",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, pending.Status)

	unchanged, err := h.invoices.Get(h.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusIssued, unchanged.Status)
	assert.Zero(t, unchanged.AmountPaid)

	confirmed, settled, err := h.payments.Confirm(h.ctx, h.admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, confirmed.Status)
	assert.Equal(t, domain.InvoiceStatusPaid, settled.Status)

	_, _, err = h.payments.Confirm(h.ctx, h.admin, pending.ID)
	requireCode(t, err, "BAD_REQUEST")

	second := h.invoiced(t, customer)
	declared, err := h.payments.Submit(h.ctx, customer, second.ID, PaymentInput{Amount: 500, Method: domain.PaymentMethodCheque})
	require.NoError(t, err)
	rejected, err := h.payments.Reject(h.ctx, h.admin, declared.ID, "cheque bounced")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, rejected.Status)
	assert.Equal(t, "cheque bounced", rejected.Notes)

	_, err = h.payments.Reject(h.ctx, h.admin, declared.ID, "")
	requireCode(t, err, "BAD_REQUEST")
}

func TestRefundRecomputesInvoice(t *testing.T) {
	h := newHarness(t)
	inv := h.invoiced(t, h.customer(t, "owner@example.com"))

	full, paid, err := h.payments.Record(h.ctx, h.admin, inv.ID, PaymentInput{Amount: 115000, Method: domain.PaymentMethodCreditCard})
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceStatusPaid, paid.Status)

	refunded, reopened, err := h.payments.Refund(h.ctx, h.admin, full.ID, "duplicate charge")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, domain.InvoiceStatusIssued, reopened.Status)
	assert.Zero(t, reopened.AmountPaid)
	assert.Nil(t, reopened.PaidAt)

	_, _, err = h.payments.Refund(h.ctx, h.admin, full.ID, "")
	requireCode(t, err, "BAD_REQUEST")

	_, _, err = h.payments.Refund(h.ctx, h.admin, "00000000-0000-4000-8000-000000000000", "")
	requireCode(t, err, "NOT_FOUND")
}
