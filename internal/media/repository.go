package media

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heimdex/watermark-eraser/internal/geometry"
)

type Repository interface {
	CreateVideo(ctx context.Context, v *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideosByOwner(ctx context.Context, owner string) ([]*Video, error)
	// AdvanceChunks records chunk index as received. It fails with
	// ErrOutOfOrder unless index equals the current chunk count.
	AdvanceChunks(ctx context.Context, id string, index int, n int64) error
	UpdateRegion(ctx context.Context, id string, r geometry.IntRect) error
	UpdateStatus(ctx context.Context, id string, status Status, errorMsg string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const videoColumns = `id, owner, file_name, content_type, size, status, chunks_received, bytes_received,
	error, region_x, region_y, region_width, region_height, uploaded_at, updated_at`

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, owner, file_name, content_type, size, status, chunks_received, bytes_received, error, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.Owner, v.FileName, v.ContentType, v.Size, string(v.Status), v.ChunksReceived, v.BytesReceived,
		nullString(v.Error), formatTime(v.UploadedAt), formatTime(v.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) ListVideosByOwner(ctx context.Context, owner string) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+`
		FROM videos WHERE owner = ? AND status != 'deleted'
		ORDER BY uploaded_at DESC, id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) AdvanceChunks(ctx context.Context, id string, index int, n int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE videos
		SET chunks_received = chunks_received + 1, bytes_received = bytes_received + ?, updated_at = ?
		WHERE id = ? AND chunks_received = ?
	`, n, formatTime(time.Now()), id, index)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOutOfOrder
	}
	return nil
}

func (r *SQLiteRepository) UpdateRegion(ctx context.Context, id string, rect geometry.IntRect) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET region_x = ?, region_y = ?, region_width = ?, region_height = ?, updated_at = ?
		WHERE id = ?
	`, rect.X, rect.Y, rect.Width, rect.Height, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE videos SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(s scanner) (*Video, error) {
	var v Video
	var status string
	var errMsg sql.NullString
	var rx, ry, rw, rh sql.NullInt64
	var uploadedAt, updatedAt string

	err := s.Scan(&v.ID, &v.Owner, &v.FileName, &v.ContentType, &v.Size, &status, &v.ChunksReceived, &v.BytesReceived,
		&errMsg, &rx, &ry, &rw, &rh, &uploadedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.Status = Status(status)
	v.Error = errMsg.String
	if rx.Valid && ry.Valid && rw.Valid && rh.Valid {
		v.Region = &geometry.IntRect{X: rx.Int64, Y: ry.Int64, Width: rw.Int64, Height: rh.Int64}
	}
	v.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
