package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// SongRepository caches library songs.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

const songColumns = "id, title, filename, duration, size, added_date"

// ReplaceAll swaps the cached library for songs.
func (r *SongRepository) ReplaceAll(ctx context.Context, songs []models.Track) error {
	for _, s := range songs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validation failed for %q: %w", s.ID, err)
		}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM songs"); err != nil {
			return fmt.Errorf("failed to clear songs: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO songs (id, title, filename, duration, size, added_date)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range songs {
			if _, err := stmt.ExecContext(ctx, s.ID, s.Title, s.Filename, s.Duration, s.Size, s.AddedDate); err != nil {
				return fmt.Errorf("failed to insert song %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// Upsert inserts or updates a single song.
func (r *SongRepository) Upsert(ctx context.Context, s models.Track) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO songs (id, title, filename, duration, size, added_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			filename = excluded.filename,
			duration = excluded.duration,
			size = excluded.size,
			added_date = excluded.added_date,
			synced_at = CURRENT_TIMESTAMP
	`, s.ID, s.Title, s.Filename, s.Duration, s.Size, s.AddedDate)
	if err != nil {
		return fmt.Errorf("failed to upsert song: %w", err)
	}
	return nil
}

// Get retrieves a cached song by id.
func (r *SongRepository) Get(ctx context.Context, id string) (*models.Track, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE id = ?", id)
	s, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a cached song.
func (r *SongRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	return nil
}

// List returns cached songs newest first, optionally filtered by a case-insensitive title or filename match.
func (r *SongRepository) List(ctx context.Context, filter string) ([]models.Track, error) {
	query := "SELECT " + songColumns + " FROM songs"
	args := []any{}

	if filter = strings.TrimSpace(filter); filter != "" {
		query += " WHERE title LIKE ? COLLATE NOCASE OR filename LIKE ? COLLATE NOCASE"
		like := "%" + filter + "%"
		args = append(args, like, like)
	}
	query += " ORDER BY added_date DESC, title ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []models.Track
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return songs, nil
}

// Count returns the number of cached songs.
func (r *SongRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

func scanSong(row scanner) (*models.Track, error) {
	var s models.Track
	err := row.Scan(&s.ID, &s.Title, &s.Filename, &s.Duration, &s.Size, &s.AddedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}
	return &s, nil
}
