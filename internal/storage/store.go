package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dailycraft/internal/config"
	"dailycraft/internal/services"
)

// SubjectKeyLayout is the local-date format used for diary keys and file names.
const SubjectKeyLayout = "2006-01-02"

// Entry is one archived diary.
type Entry struct {
	SubjectKey string    `json:"subject_key"`
	Content    string    `json:"content"`
	FilePath   string    `json:"file_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store archives diaries in SQLite and mirrors each one to a markdown file.
type Store struct {
	db       *sql.DB
	path     string
	diaryDir string
}

// Open initializes or connects to the diary database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, diaryDir: cfg.Paths.DiaryDir}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveDiary writes the markdown file for key and upserts its row. Saving an
// existing key replaces the content and keeps the original creation time.
func (s *Store) SaveDiary(ctx context.Context, key, content string) (*Entry, error) {
	if err := ValidateSubjectKey(key); err != nil {
		return nil, err
	}

	filePath, err := s.writeMarkdown(key, content)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diaries (subject_key, content, file_path, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(subject_key) DO UPDATE SET
             content = excluded.content,
             file_path = excluded.file_path,
             updated_at = excluded.updated_at`,
		key, content, filePath, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert diary %s: %w", key, err)
	}
	return s.GetDiary(ctx, key)
}

// GetDiary returns the diary stored under key.
func (s *Store) GetDiary(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateSubjectKey(key); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT subject_key, content, file_path, created_at, updated_at FROM diaries WHERE subject_key = ?`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "storage", "get diary", key, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get diary %s: %w", key, err)
	}
	return entry, nil
}

// ListDiaries returns all diaries, newest key first.
func (s *Store) ListDiaries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_key, content, file_path, created_at, updated_at FROM diaries ORDER BY subject_key DESC`)
	if err != nil {
		return nil, fmt.Errorf("list diaries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diary: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diaries: %w", err)
	}
	return out, nil
}

// ValidateSubjectKey ensures key is a calendar date in SubjectKeyLayout.
func ValidateSubjectKey(key string) error {
	if _, err := time.Parse(SubjectKeyLayout, key); err != nil {
		return services.Wrap(services.ErrValidation, "storage", "subject key", fmt.Sprintf("%q is not a YYYY-MM-DD date", key), nil)
	}
	return nil
}

// RenderMarkdown produces the on-disk form of a diary.
func RenderMarkdown(key, content string) string {
	return fmt.Sprintf("# %s Diary\n\n%s\n\n---\n*Generated by DailyCraft AI*\n", key, content)
}

func (s *Store) writeMarkdown(key, content string) (string, error) {
	if strings.TrimSpace(s.diaryDir) == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.diaryDir, 0o755); err != nil {
		return "", fmt.Errorf("create diary dir: %w", err)
	}
	target := filepath.Join(s.diaryDir, key+".md")
	tmp, err := os.CreateTemp(s.diaryDir, "."+key+"-*.md")
	if err != nil {
		return "", fmt.Errorf("create temp diary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(RenderMarkdown(key, content)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write diary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close diary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename diary file: %w", err)
	}
	return target, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		filePath  sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&entry.SubjectKey, &entry.Content, &filePath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	entry.FilePath = filePath.String
	entry.CreatedAt = parseTime(createdAt)
	entry.UpdatedAt = parseTime(updatedAt)
	return &entry, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
