package server

import (
	"errors"
	"net/http"

	"musicbox/storage"

	"github.com/gorilla/mux"
)

// MediaHandler serves an uploaded file from the media store. Range requests are
// honored so browsers can seek inside <audio> elements.
func (h *Handler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	media, err := h.media.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrMediaNotFound) || errors.Is(err, storage.ErrInvalidName) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}
	defer media.Close()

	w.Header().Set("Content-Type", storage.ContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, name, media.ModTime, media)
}
