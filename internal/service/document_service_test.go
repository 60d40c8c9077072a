package service

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
)

func pdf(name, body string) UploadInput {
	return UploadInput{
		FileName: name,
		MimeType: "application/pdf",
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	}
}

func TestCustomerUploadAndDownload(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)

	doc, err := h.documents.Upload(h.ctx, owner, req.ID, pdf(`C:\scans\passport.PDF`, "%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "passport.PDF", doc.FileName)
	assert.Equal(t, domain.DocumentCategoryAttachment, doc.Category)
	assert.Equal(t, domain.SubjectTypeCustomer, doc.UploadedByType)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "requests/"+req.ID+"/"))
	assert.True(t, strings.HasSuffix(doc.StorageKey, ".pdf"))
	assert.Equal(t, 1, h.blobs.Len())

	got, body, err := h.documents.Open(h.ctx, owner, doc.ID)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, doc.ID, got.ID)

	docs, err := h.documents.ListByRequest(h.ctx, h.admin, req.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	uploaded := h.eventsOf(events.EventDocumentUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, req.RequestNumber, uploaded[0].Payload.(events.DocumentUploadedPayload).RequestNumber)
}

func TestUploadLimits(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)

	big := strings.Repeat("x", 1025)
	_, err := h.documents.Upload(h.ctx, owner, req.ID, pdf("big.pdf", big))
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Equal(t, int64(1024), de.Details["max_size"])

	exe := pdf("tool.exe", "MZ")
	exe.MimeType = "application/x-msdownload"
	_, err = h.documents.Upload(h.ctx, owner, req.ID, exe)
	requireCode(t, err, "BAD_REQUEST")

	png := pdf("photo.png", "png")
	png.MimeType = "image/PNG; charset=binary"
	_, err = h.documents.Upload(h.ctx, owner, req.ID, png)
	assert.NoError(t, err)

	_, err = h.documents.Upload(h.ctx, owner, req.ID, pdf("empty.pdf", ""))
	requireCode(t, err, "VALIDATION_FAILED")

	report := pdf("report.pdf", "data")
	report.Category = domain.DocumentCategoryReport
	_, err = h.documents.Upload(h.ctx, owner, req.ID, report)
	requireCode(t, err, "FORBIDDEN")

	report.Body = strings.NewReader("data")
	staffDoc, err := h.documents.Upload(h.ctx, h.admin, req.ID, report)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentCategoryReport, staffDoc.Category)

	bogus := pdf("x.pdf", "x")
	bogus.Category = "SECRET"
	_, err = h.documents.Upload(h.ctx, h.admin, req.ID, bogus)
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestDocumentsHiddenFromOtherCustomers(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	other := h.customer(t, "other@example.com")
	req := h.draft(t, owner)
	doc, err := h.documents.Upload(h.ctx, owner, req.ID, pdf("a.pdf", "a"))
	require.NoError(t, err)

	_, err = h.documents.Upload(h.ctx, other, req.ID, pdf("b.pdf", "b"))
	requireCode(t, err, "NOT_FOUND")
	_, err = h.documents.ListByRequest(h.ctx, other, req.ID)
	requireCode(t, err, "NOT_FOUND")
	_, _, err = h.documents.Open(h.ctx, other, doc.ID)
	requireCode(t, err, "NOT_FOUND")
	err = h.documents.Delete(h.ctx, other, doc.ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestDocumentDeleteRules(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)

	staffDoc, err := h.documents.Upload(h.ctx, h.admin, req.ID, pdf("report.pdf", "r"))
	require.NoError(t, err)
	err = h.documents.Delete(h.ctx, owner, staffDoc.ID)
	requireCode(t, err, "FORBIDDEN")

	own, err := h.documents.Upload(h.ctx, owner, req.ID, pdf("mine.pdf", "m"))
	require.NoError(t, err)
	require.NoError(t, h.documents.Delete(h.ctx, owner, own.ID))
	_, _, err = h.documents.Open(h.ctx, owner, own.ID)
	requireCode(t, err, "NOT_FOUND")

	require.NoError(t, h.documents.Delete(h.ctx, h.admin, staffDoc.ID))
	assert.Zero(t, h.blobs.Len())
}

func TestCustomerUploadNotifiesAssignee(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	agent := h.employee(t, h.role(t, "Agent", auth.PermDocumentsRead).ID)
	req := h.advanceTo(t, h.draft(t, owner), domain.RequestStatusSubmitted)
	_, err := h.assignments.AssignEmployee(h.ctx, h.admin, req.ID, agent.ID, "")
	require.NoError(t, err)

	before, err := h.notifications.UnreadCount(h.ctx, agent)
	require.NoError(t, err)

	_, err = h.documents.Upload(h.ctx, owner, req.ID, pdf("extra.pdf", "e"))
	require.NoError(t, err)
	after, err := h.notifications.UnreadCount(h.ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	// staff uploads do not notify
	_, err = h.documents.Upload(h.ctx, h.admin, req.ID, pdf("internal.pdf", "i"))
	require.NoError(t, err)
	final, err := h.notifications.UnreadCount(h.ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, after, final)
}

func TestRemoveRequestDeletesBlobs(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)
	_, err := h.documents.Upload(h.ctx, owner, req.ID, pdf("a.pdf", "a"))
	require.NoError(t, err)
	require.Equal(t, 1, h.blobs.Len())

	require.NoError(t, h.requests.Remove(h.ctx, h.admin, req.ID))
	assert.Zero(t, h.blobs.Len())
}
