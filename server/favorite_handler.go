package server

import (
	"net/http"
)

// FavoritesHandler lists favorites joined with their songs.
func (h *Handler) FavoritesHandler(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.favorites.ListFavorites(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, currentSession(r), "favorites.html", pageData{Favorites: favorites})
}

// AddFavoriteHandler adds a favorite row for the song. Repeating the request adds
// another row.
func (h *Handler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := songIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.favorites.AddFavorite(r.Context(), songID); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, currentSession(r), "/")
}

// RemoveFavoriteHandler removes every favorite row for the song.
func (h *Handler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := songIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.favorites.RemoveFavorite(r.Context(), songID); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, currentSession(r), "/favorites")
}
