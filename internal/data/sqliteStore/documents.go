package sqliteStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akolanti/docchat/internal/domain/docModel"
)

const documentColumns = `id, filename, original_name, file_type, file_size, uploaded_by,
	status, content, chunks, embeddings, metadata, uploaded_at`

// DocumentStore adapts Store to docModel.DocumentStore.
type DocumentStore struct {
	*Store
}

var _ docModel.DocumentStore = DocumentStore{}

func (s *Store) Documents() DocumentStore {
	return DocumentStore{s}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (docModel.Document, error) {
	var (
		d                        docModel.Document
		uploadedBy               sql.NullInt64
		content                  sql.NullString
		chunks, embeddings, meta sql.NullString
		status, uploadedAt       string
	)
	err := row.Scan(&d.ID, &d.Filename, &d.OriginalName, &d.FileType, &d.FileSize, &uploadedBy,
		&status, &content, &chunks, &embeddings, &meta, &uploadedAt)
	if err != nil {
		return d, err
	}
	d.Status = docModel.DocumentStatus(status)
	d.UploadedAt = parseTime(uploadedAt)
	if uploadedBy.Valid {
		v := uploadedBy.Int64
		d.UploadedBy = &v
	}
	if content.Valid {
		v := content.String
		d.Content = &v
	}
	if chunks.Valid {
		if err := json.Unmarshal([]byte(chunks.String), &d.Chunks); err != nil {
			return d, fmt.Errorf("decode chunks: %w", err)
		}
	}
	if embeddings.Valid {
		if err := json.Unmarshal([]byte(embeddings.String), &d.Embeddings); err != nil {
			return d, fmt.Errorf("decode embeddings: %w", err)
		}
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &d.Metadata); err != nil {
			return d, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return d, nil
}

func (s DocumentStore) CreateDocument(ctx context.Context, doc *docModel.Document) error {
	var uploadedBy sql.NullInt64
	if doc.UploadedBy != nil {
		uploadedBy = sql.NullInt64{Int64: *doc.UploadedBy, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (filename, original_name, file_type, file_size, uploaded_by, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.Filename, doc.OriginalName, doc.FileType, doc.FileSize, uploadedBy, string(doc.Status),
		doc.UploadedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID = id
	return nil
}

func (s DocumentStore) GetDocument(ctx context.Context, id int64) (docModel.Document, bool) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docModel.Document{}, false
	}
	if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read document", "documentId", id, "error", err)
		return docModel.Document{}, false
	}
	return doc, true
}

func (s DocumentStore) ListDocumentsByOwner(ctx context.Context, userID *int64) []docModel.Document {
	if userID == nil {
		return s.query(ctx, "SELECT "+documentColumns+" FROM documents WHERE uploaded_by IS NULL ORDER BY id")
	}
	return s.query(ctx, "SELECT "+documentColumns+" FROM documents WHERE uploaded_by = ? ORDER BY id", *userID)
}

func (s DocumentStore) ListDocumentsByStatus(ctx context.Context, status docModel.DocumentStatus) []docModel.Document {
	return s.query(ctx, "SELECT "+documentColumns+" FROM documents WHERE status = ? ORDER BY id", string(status))
}

func (s DocumentStore) query(ctx context.Context, q string, args ...any) []docModel.Document {
	log := s.logger.WithTrace(ctx)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		log.Error("Failed to list documents", "error", err)
		return []docModel.Document{}
	}
	defer rows.Close()

	docs := make([]docModel.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			log.Error("Skipping unreadable document row", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		log.Error("Document listing interrupted", "error", err)
	}
	return docs
}

func (s DocumentStore) CompleteIngestion(ctx context.Context, id int64, outcome docModel.IngestionOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := scanDocument(tx.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return docModel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document %d: %w", id, err)
	}
	if err := outcome.Apply(&doc); err != nil {
		return err
	}

	var content sql.NullString
	if doc.Content != nil {
		content = sql.NullString{String: *doc.Content, Valid: true}
	}
	chunks, err := nullJSON(doc.Chunks, doc.Chunks == nil)
	if err != nil {
		return err
	}
	embeddings, err := nullJSON(doc.Embeddings, doc.Embeddings == nil)
	if err != nil {
		return err
	}
	meta, err := nullJSON(doc.Metadata, doc.Metadata == nil)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, content = ?, chunks = ?, embeddings = ?, metadata = ?
		WHERE id = ? AND status = ?`,
		string(doc.Status), content, chunks, embeddings, meta, id, string(docModel.StatusProcessing))
	if err != nil {
		return fmt.Errorf("update document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return docModel.ErrAlreadyFinalized
	}
	return tx.Commit()
}

func (s DocumentStore) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docModel.ErrNotFound
	}
	return nil
}
