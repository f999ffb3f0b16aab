package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// PlaylistRepository caches playlists and their ordered entries.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// ReplaceAll swaps the cached playlists for playlists.
func (r *PlaylistRepository) ReplaceAll(ctx context.Context, playlists []models.Playlist) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs"); err != nil {
			return fmt.Errorf("failed to clear playlist songs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlists"); err != nil {
			return fmt.Errorf("failed to clear playlists: %w", err)
		}

		for _, p := range playlists {
			if err := insertPlaylist(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Save inserts or replaces one playlist with its entries.
func (r *PlaylistRepository) Save(ctx context.Context, p models.Playlist) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist = ?", p.Key()); err != nil {
			return fmt.Errorf("failed to clear playlist songs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlists WHERE serialized_name = ?", p.Key()); err != nil {
			return fmt.Errorf("failed to clear playlist: %w", err)
		}
		return insertPlaylist(ctx, tx, p)
	})
}

func insertPlaylist(ctx context.Context, tx *sql.Tx, p models.Playlist) error {
	if p.Name == "" {
		return fmt.Errorf("validation failed: playlist name is required")
	}

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (serialized_name, name, image, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Key(), p.Name, p.Image, string(tags), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert playlist %s: %w", p.Key(), err)
	}

	for i, s := range p.Songs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_songs (playlist, position, entry_id, song_id, title, filename, duration)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.Key(), i, s.ID, s.LibrarySongID, s.Title, s.Filename, s.Duration)
		if err != nil {
			return fmt.Errorf("failed to insert playlist entry %d: %w", i, err)
		}
	}
	return nil
}

// Get retrieves a cached playlist with its songs in order.
func (r *PlaylistRepository) Get(ctx context.Context, key string) (*models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT serialized_name, name, image, tags, created_at FROM playlists WHERE serialized_name = ?
	`, key)

	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
	}
	if err != nil {
		return nil, err
	}

	if p.Songs, err = r.songs(ctx, key); err != nil {
		return nil, err
	}
	p.SongCount = len(p.Songs)
	return p, nil
}

// List returns every cached playlist with song counts but without entries.
func (r *PlaylistRepository) List(ctx context.Context) ([]models.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.serialized_name, p.name, p.image, p.tags, p.created_at,
			(SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist = p.serialized_name)
		FROM playlists p
		ORDER BY p.name COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		var (
			p    models.Playlist
			tags string
		)
		if err := rows.Scan(&p.SerializedName, &p.Name, &p.Image, &tags, &p.CreatedAt, &p.SongCount); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		if err := decodeTags(tags, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Delete removes a cached playlist and its entries.
func (r *PlaylistRepository) Delete(ctx context.Context, key string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist = ?", key); err != nil {
			return fmt.Errorf("failed to delete playlist songs: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM playlists WHERE serialized_name = ?", key)
		if err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
		}
		return nil
	})
}

func (r *PlaylistRepository) songs(ctx context.Context, key string) ([]models.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_id, song_id, title, filename, duration
		FROM playlist_songs WHERE playlist = ? ORDER BY position
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist songs: %w", err)
	}
	defer rows.Close()

	songs := []models.Track{}
	for rows.Next() {
		var s models.Track
		if err := rows.Scan(&s.ID, &s.LibrarySongID, &s.Title, &s.Filename, &s.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan playlist song: %w", err)
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		p    models.Playlist
		tags string
	)
	err := row.Scan(&p.SerializedName, &p.Name, &p.Image, &tags, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	if err := decodeTags(tags, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeTags(raw string, p *models.Playlist) error {
	p.Tags = []string{}
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &p.Tags); err != nil {
		return fmt.Errorf("failed to decode tags for %s: %w", p.Name, err)
	}
	return nil
}
