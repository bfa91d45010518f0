package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"furniture-catalog/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAttachmentNotFound      = errors.New("attachment record not found")
	ErrAttachmentAlreadyExists = errors.New("attachment record already exists for this product")
)

// AttachmentRepository stores one record per (product, kind). Entries are
// kept as an ordered JSONB array and rewritten as a whole.
type AttachmentRepository interface {
	Create(ctx context.Context, record *domain.AttachmentRecord) error
	UpdateEntries(ctx context.Context, record *domain.AttachmentRecord) error
	Delete(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) error
	FindByProduct(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) (*domain.AttachmentRecord, error)
	List(ctx context.Context, kind domain.AttachmentKind) ([]*domain.AttachmentRecord, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.AttachmentRecord, error)
	ReferencesChild(ctx context.Context, kind domain.AttachmentKind, childID uuid.UUID) (bool, error)
	ImageIDs(ctx context.Context) ([]string, error)
}

type attachmentRepository struct {
	db *sql.DB
}

// NewAttachmentRepository creates a new instance of AttachmentRepository
func NewAttachmentRepository(db *sql.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

const attachmentColumns = `id, product_id, kind, entries, created_at, updated_at`

func (r *attachmentRepository) Create(ctx context.Context, record *domain.AttachmentRecord) error {
	entries, err := encodeEntries(record.Entries)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO product_attachments (id, product_id, kind, entries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.ProductID,
		record.Kind,
		entries,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "product_attachments_product_kind_key"):
			return ErrAttachmentAlreadyExists
		case isForeignKeyViolation(err):
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to create %s record: %w", record.Kind, err)
	}

	return nil
}

func (r *attachmentRepository) UpdateEntries(ctx context.Context, record *domain.AttachmentRecord) error {
	entries, err := encodeEntries(record.Entries)
	if err != nil {
		return err
	}

	query := `
		UPDATE product_attachments
		SET entries = $3, updated_at = $4
		WHERE kind = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, record.Kind, record.ProductID, entries, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update %s record: %w", record.Kind, err)
	}

	return expectAffected(result, ErrAttachmentNotFound)
}

func (r *attachmentRepository) Delete(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) error {
	query := `DELETE FROM product_attachments WHERE kind = $1 AND product_id = $2`

	result, err := r.db.ExecContext(ctx, query, kind, productID)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}

	return expectAffected(result, ErrAttachmentNotFound)
}

func (r *attachmentRepository) FindByProduct(ctx context.Context, kind domain.AttachmentKind, productID uuid.UUID) (*domain.AttachmentRecord, error) {
	query := `SELECT ` + attachmentColumns + ` FROM product_attachments WHERE kind = $1 AND product_id = $2`

	record, err := scanAttachment(r.db.QueryRowContext(ctx, query, kind, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to find %s record: %w", kind, err)
	}

	return record, nil
}

func (r *attachmentRepository) List(ctx context.Context, kind domain.AttachmentKind) ([]*domain.AttachmentRecord, error) {
	query := `SELECT ` + attachmentColumns + ` FROM product_attachments WHERE kind = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	defer rows.Close()

	return collectAttachments(rows)
}

// ListByProduct returns the records of every kind for one product
func (r *attachmentRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.AttachmentRecord, error) {
	query := `SELECT ` + attachmentColumns + ` FROM product_attachments WHERE product_id = $1 ORDER BY kind ASC`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product attachments: %w", err)
	}
	defer rows.Close()

	return collectAttachments(rows)
}

// ReferencesChild reports whether any record of kind has an entry for childID
func (r *attachmentRepository) ReferencesChild(ctx context.Context, kind domain.AttachmentKind, childID uuid.UUID) (bool, error) {
	probe, err := json.Marshal([]map[string]string{{"child_id": childID.String()}})
	if err != nil {
		return false, fmt.Errorf("failed to encode entry probe: %w", err)
	}

	query := `SELECT EXISTS (SELECT 1 FROM product_attachments WHERE kind = $1 AND entries @> $2::jsonb)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, kind, string(probe)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s references: %w", kind, err)
	}

	return exists, nil
}

// ImageIDs returns every blob id referenced by any attachment entry
func (r *attachmentRepository) ImageIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `
		SELECT jsonb_array_elements_text(e->'images')
		FROM product_attachments, jsonb_array_elements(entries) AS e
	`)
}

func encodeEntries(entries []domain.AttachmentEntry) (string, error) {
	normalized := make([]domain.AttachmentEntry, len(entries))
	for i, e := range entries {
		normalized[i] = e
		if normalized[i].Images == nil {
			normalized[i].Images = []string{}
		}
	}

	b, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachment entries: %w", err)
	}
	return string(b), nil
}

func scanAttachment(row rowScanner) (*domain.AttachmentRecord, error) {
	record := &domain.AttachmentRecord{}
	var entries []byte

	err := row.Scan(
		&record.ID,
		&record.ProductID,
		&record.Kind,
		&entries,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Entries = []domain.AttachmentEntry{}
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &record.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode attachment entries: %w", err)
		}
	}
	if record.Entries == nil {
		record.Entries = []domain.AttachmentEntry{}
	}

	return record, nil
}

func collectAttachments(rows *sql.Rows) ([]*domain.AttachmentRecord, error) {
	records := []*domain.AttachmentRecord{}
	for rows.Next() {
		record, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachment records: %w", err)
	}

	return records, nil
}
