package domain

import "time"

// DocumentCategory classifies uploaded files.
type DocumentCategory string

const (
	DocumentCategoryAttachment  DocumentCategory = "ATTACHMENT"
	DocumentCategoryReport      DocumentCategory = "REPORT"
	DocumentCategoryCertificate DocumentCategory = "CERTIFICATE"
	DocumentCategoryInvoice     DocumentCategory = "INVOICE"
)

// Valid reports whether c is a known category.
func (c DocumentCategory) Valid() bool {
	switch c {
	case DocumentCategoryAttachment, DocumentCategoryReport, DocumentCategoryCertificate, DocumentCategoryInvoice:
		return true
	}
	return false
}

// Document is file metadata; the bytes live in the blob store under StorageKey.
type Document struct {
	ID             string
	RequestID      string
	UploadedByID   string
	UploadedByType SubjectType
	FileName       string
	MimeType       string
	SizeBytes      int64
	StorageKey     string
	Category       DocumentCategory
	Description    string
	CreatedAt      time.Time
}
