package model

// Song represents an uploaded audio track in the catalog.
type Song struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Filename  string `json:"filename"` // Name of the file inside the media store
	PlayCount int64  `json:"playCount"`
}
