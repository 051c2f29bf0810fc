package model

// FavoriteSong is a favorite joined with the song it points at. Favorites are global,
// not per user.
type FavoriteSong struct {
	SongID   int64  `json:"songId"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Filename string `json:"filename"`
}
