package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dailycraft/internal/services"
)

// OCRRecord is the text read from one captured image. Date is the local
// calendar day of Timestamp and groups records the same way diaries are keyed.
type OCRRecord struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	ImagePath string    `json:"image_path"`
	Text      string    `json:"text"`
	AppName   string    `json:"app_name,omitempty"`
}

// SaveOCRRecord appends rec. Records with blank text are rejected; a zero
// Timestamp is replaced by the current time.
func (s *Store) SaveOCRRecord(ctx context.Context, rec OCRRecord) (*OCRRecord, error) {
	if strings.TrimSpace(rec.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, "storage", "save ocr record", "text is empty", nil)
	}
	if strings.TrimSpace(rec.ImagePath) == "" {
		return nil, services.Wrap(services.ErrValidation, "storage", "save ocr record", "image path is empty", nil)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Date = rec.Timestamp.Format(SubjectKeyLayout)

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ocr_records (captured_on, captured_at, image_path, text, app_name)
         VALUES (?, ?, ?, ?, ?)`,
		rec.Date, rec.Timestamp.Format(time.RFC3339Nano), rec.ImagePath, rec.Text, nullString(rec.AppName),
	)
	if err != nil {
		return nil, fmt.Errorf("insert ocr record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ocr record id: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// ListOCRRecords returns the records captured on date, oldest first.
func (s *Store) ListOCRRecords(ctx context.Context, date string) ([]OCRRecord, error) {
	if err := ValidateSubjectKey(date); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, captured_on, captured_at, image_path, text, app_name
         FROM ocr_records WHERE captured_on = ? ORDER BY captured_at, id`, date)
	if err != nil {
		return nil, fmt.Errorf("list ocr records: %w", err)
	}
	defer rows.Close()

	out := []OCRRecord{}
	for rows.Next() {
		var (
			rec        OCRRecord
			capturedAt string
			appName    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Date, &capturedAt, &rec.ImagePath, &rec.Text, &appName); err != nil {
			return nil, fmt.Errorf("scan ocr record: %w", err)
		}
		rec.Timestamp = parseTime(capturedAt)
		rec.AppName = appName.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ocr records: %w", err)
	}
	return out, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
