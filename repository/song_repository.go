package repository

import (
	"context"
	"database/sql"
	"fmt"

	"musicbox/model"
)

// SongRepository defines the interface for catalog operations.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
	ListSongs(ctx context.Context) ([]*model.Song, error)
	IncrementPlayCount(ctx context.Context, songID int64) error
}

type sqlSongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new instance of sqlSongRepository.
func NewSongRepository(db *sql.DB) SongRepository {
	return &sqlSongRepository{db: db}
}

// CreateSong adds a new song with a zero play count.
func (r *sqlSongRepository) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO songs (title, artist, filename) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateSong: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, song.Title, song.Artist, song.Filename)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateSong: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateSong: %w", err)
	}
	return id, nil
}

// ListSongs returns every song in insertion order.
func (r *sqlSongRepository) ListSongs(ctx context.Context) ([]*model.Song, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, artist, filename, play_count FROM songs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song := &model.Song{}
		if err := rows.Scan(&song.ID, &song.Title, &song.Artist, &song.Filename, &song.PlayCount); err != nil {
			return nil, fmt.Errorf("failed to scan song in ListSongs: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListSongs: %w", err)
	}
	return songs, nil
}

// IncrementPlayCount bumps the counter in a single statement. An unknown id updates
// zero rows, which is not an error.
func (r *sqlSongRepository) IncrementPlayCount(ctx context.Context, songID int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE songs SET play_count = play_count + 1 WHERE id = ?", songID); err != nil {
		return fmt.Errorf("failed to execute IncrementPlayCount for song ID %d: %w", songID, err)
	}
	return nil
}
