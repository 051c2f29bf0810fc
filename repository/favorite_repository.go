package repository

import (
	"context"
	"database/sql"
	"fmt"

	"musicbox/model"
)

// FavoriteRepository defines the interface for the global favorites list.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, songID int64) error
	RemoveFavorite(ctx context.Context, songID int64) error
	ListFavorites(ctx context.Context) ([]*model.FavoriteSong, error)
}

type sqlFavoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new instance of sqlFavoriteRepository.
func NewFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &sqlFavoriteRepository{db: db}
}

// AddFavorite inserts a favorite row. Neither the song's existence nor an existing
// favorite for the same song is checked; repeated calls add repeated rows.
func (r *sqlFavoriteRepository) AddFavorite(ctx context.Context, songID int64) error {
	if _, err := r.db.ExecContext(ctx, "INSERT INTO favorites (song_id) VALUES (?)", songID); err != nil {
		return fmt.Errorf("failed to add favorite for song ID %d: %w", songID, err)
	}
	return nil
}

// RemoveFavorite deletes every favorite row for the song.
func (r *sqlFavoriteRepository) RemoveFavorite(ctx context.Context, songID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM favorites WHERE song_id = ?", songID); err != nil {
		return fmt.Errorf("failed to remove favorites for song ID %d: %w", songID, err)
	}
	return nil
}

// ListFavorites joins favorites to songs. Favorites whose song is gone drop out of the join.
func (r *sqlFavoriteRepository) ListFavorites(ctx context.Context) ([]*model.FavoriteSong, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT songs.id, songs.title, songs.artist, songs.filename
		FROM favorites
		JOIN songs ON favorites.song_id = songs.id
		ORDER BY favorites.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]*model.FavoriteSong, 0)
	for rows.Next() {
		fav := &model.FavoriteSong{}
		if err := rows.Scan(&fav.SongID, &fav.Title, &fav.Artist, &fav.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListFavorites: %w", err)
	}
	return favorites, nil
}
