package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-service/internal/domain"
)

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

type documentRepository struct {
	pool DB
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(pool DB) DocumentRepository {
	return &documentRepository{pool: pool}
}

const documentColumns = `id, request_id, uploaded_by_id, uploaded_by_type, file_name, mime_type, size_bytes,
               storage_key, category, description, created_at`

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
        INSERT INTO documents (request_id, uploaded_by_id, uploaded_by_type, file_name, mime_type, size_bytes,
            storage_key, category, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		doc.RequestID,
		doc.UploadedByID,
		doc.UploadedByType,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.Category,
		doc.Description,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id))
}

func (r *documentRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE request_id=$1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	if err := row.Scan(
		&doc.ID,
		&doc.RequestID,
		&doc.UploadedByID,
		&doc.UploadedByType,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.Category,
		&doc.Description,
		&doc.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}
