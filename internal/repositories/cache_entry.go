package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samse/lottiekit/internal/models"
	"github.com/samse/lottiekit/internal/shared"
)

const cacheEntryColumns = `id, remote_url, local_path, size, checksum, fetched_at, last_used_at, created_at, updated_at`

// CacheEntryRepository implements models.Repository[*models.CacheEntry].
type CacheEntryRepository struct {
	db *sql.DB
}

// NewCacheEntryRepository creates a new CacheEntryRepository with the given database connection
func NewCacheEntryRepository(db *sql.DB) *CacheEntryRepository {
	return &CacheEntryRepository{db: db}
}

// Create inserts a new [models.CacheEntry] with a generated ID
func (r *CacheEntryRepository) Create(entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	entry.SetID(shared.GenerateID())

	query := `INSERT INTO cache_entries (` + cacheEntryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		entry.ID(),
		entry.RemoteURL(),
		entry.LocalPath(),
		entry.Size(),
		entry.Checksum(),
		entry.FetchedAt(),
		nullTime(entry.LastUsedAt()),
		entry.CreatedAt(),
		entry.UpdatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("cache entry for %s already exists: %w", entry.RemoteURL(), err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Upsert creates the entry for its remote URL, or refreshes the existing one in place.
func (r *CacheEntryRepository) Upsert(entry *models.CacheEntry) error {
	existing, err := r.GetByURL(entry.RemoteURL())
	if errors.Is(err, ErrNotFound) {
		return r.Create(entry)
	}
	if err != nil {
		return err
	}

	existing.Refresh(entry.LocalPath(), entry.Size(), entry.Checksum(), entry.FetchedAt())
	if err := r.Update(existing); err != nil {
		return err
	}
	entry.SetID(existing.ID())
	entry.SetCreatedAt(existing.CreatedAt())
	entry.SetUpdatedAt(existing.UpdatedAt())
	return nil
}

// Get retrieves an entry by ID
func (r *CacheEntryRepository) Get(id string) (*models.CacheEntry, error) {
	row := r.db.QueryRow(`SELECT `+cacheEntryColumns+` FROM cache_entries WHERE id = ?`, id)
	return scanCacheEntry(row)
}

// GetByURL retrieves the entry for a remote URL
func (r *CacheEntryRepository) GetByURL(remoteURL string) (*models.CacheEntry, error) {
	row := r.db.QueryRow(`SELECT `+cacheEntryColumns+` FROM cache_entries WHERE remote_url = ?`, remoteURL)
	return scanCacheEntry(row)
}

// GetByLocalPath retrieves the entry that produced a local file
func (r *CacheEntryRepository) GetByLocalPath(localPath string) (*models.CacheEntry, error) {
	row := r.db.QueryRow(`SELECT `+cacheEntryColumns+` FROM cache_entries WHERE local_path = ? ORDER BY fetched_at DESC LIMIT 1`, localPath)
	return scanCacheEntry(row)
}

// Update modifies an existing entry
func (r *CacheEntryRepository) Update(entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE cache_entries
		SET local_path = ?, size = ?, checksum = ?, fetched_at = ?, last_used_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		entry.LocalPath(),
		entry.Size(),
		entry.Checksum(),
		entry.FetchedAt(),
		nullTime(entry.LastUsedAt()),
		now,
		entry.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update cache entry: %w", err)
	}
	return expectOne(result, "cache entry", entry.ID())
}

// Touch stamps last_used_at on the entry for localPath. Unknown paths are ignored.
func (r *CacheEntryRepository) Touch(localPath string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE cache_entries SET last_used_at = ? WHERE local_path = ?`, at.UTC(), localPath)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry by ID
func (r *CacheEntryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM cache_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return expectOne(result, "cache entry", id)
}

// List retrieves entries matching criteria, newest first.
//
// Supported criteria: "fetched_before" (time.Time), "remote_url_prefix" (string), "limit" (int).
func (r *CacheEntryRepository) List(criteria map[string]any) ([]*models.CacheEntry, error) {
	query := `SELECT ` + cacheEntryColumns + ` FROM cache_entries WHERE 1 = 1`
	args := []any{}

	if before, ok := criteria["fetched_before"].(time.Time); ok && !before.IsZero() {
		query += " AND fetched_at < ?"
		args = append(args, before.UTC())
	}

	if prefix, ok := criteria["remote_url_prefix"].(string); ok && prefix != "" {
		query += " AND remote_url LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(prefix)+"%")
	}

	query += " ORDER BY fetched_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func scanCacheEntry(s scanner) (*models.CacheEntry, error) {
	var (
		id, remoteURL, localPath, checksum string
		size                               int64
		fetchedAt, createdAt, updatedAt    time.Time
		lastUsedAt                         sql.NullTime
	)

	err := s.Scan(&id, &remoteURL, &localPath, &size, &checksum, &fetchedAt, &lastUsedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache entry: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}

	entry := models.NewCacheEntry(remoteURL, localPath, size, checksum, fetchedAt)
	entry.SetID(id)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	if lastUsedAt.Valid {
		entry.SetLastUsedAt(&lastUsedAt.Time)
	}
	return entry, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
