package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, title, year, file_name, file_key, file_size, file_type, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	d := &Document{}
	err := row.Scan(&d.ID, &d.Title, &d.Year, &d.FileName, &d.FileKey, &d.FileSize, &d.FileType, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, d *Document) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO documents (title, year, file_name, file_key, file_size, file_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		d.Title, d.Year, d.FileName, d.FileKey, d.FileSize, d.FileType,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	return mapErr(err)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (*Document, error) {
	d, err := scanDocument(s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) GetDocumentByYear(ctx context.Context, year int) (*Document, error) {
	d, err := scanDocument(s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE year = $1`, year))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY year DESC, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Document, error) {
		return scanDocument(row)
	})
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, d *Document) error {
	err := s.db.QueryRow(ctx, `
		UPDATE documents
		SET title = $2, year = $3, file_name = $4, file_key = $5, file_size = $6, file_type = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.Title, d.Year, d.FileName, d.FileKey, d.FileSize, d.FileType,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil
	}
	return mapErr(err)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}
