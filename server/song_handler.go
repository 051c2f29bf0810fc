package server

import (
	"errors"
	"net/http"
	"strings"

	"musicbox/core/session"
	"musicbox/logger"
	"musicbox/model"
	"musicbox/storage"
)

// HomeHandler lists the catalog with play counts.
func (h *Handler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.ListSongs(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, currentSession(r), "home.html", pageData{Songs: songs})
}

// UploadPageHandler renders the upload form.
func (h *Handler) UploadPageHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, currentSession(r), "upload.html", pageData{})
}

// UploadSongHandler stores the uploaded file under its original name and adds the song.
// Expected multipart form fields:
// - title: song title
// - artist: song artist
// - file: the audio file
func (h *Handler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	err := h.uploadSong(w, r)
	if errors.Is(err, ErrInvalidUpload) {
		logger.Warn("[Upload] rejected upload", logger.ErrorField(err))
		sess.AddFlash(session.FlashError, "Title, artist and a file are required.")
		h.redirect(w, r, sess, "/upload")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, sess, "/")
}

func (h *Handler) uploadSong(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB in memory, rest on disk
		return errors.Join(ErrInvalidUpload, err)
	}
	defer r.MultipartForm.RemoveAll()

	form := uploadForm{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Artist: strings.TrimSpace(r.FormValue("artist")),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return errors.Join(ErrInvalidUpload, err)
	default:
		defer file.Close()
		form.Filename = header.Filename
	}

	if err := h.forms.Validate(form); err != nil {
		return errors.Join(ErrInvalidUpload, err)
	}

	// Same-named uploads replace the stored file; the older row keeps pointing at it.
	if err := h.media.Save(r.Context(), form.Filename, file, header.Size); err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			return errors.Join(ErrInvalidUpload, err)
		}
		return err
	}

	songID, err := h.songs.CreateSong(r.Context(), &model.Song{
		Title:    form.Title,
		Artist:   form.Artist,
		Filename: form.Filename,
	})
	if err != nil {
		return err
	}

	_, uploader, _ := session.CurrentUser(r.Context())
	logger.Info("[Upload] song added",
		logger.Int64("song_id", songID),
		logger.String("uploader", uploader),
		logger.String("title", form.Title),
		logger.String("filename", form.Filename),
		logger.Int64("size", header.Size))
	return nil
}

// PlaySongHandler counts one play of the song.
func (h *Handler) PlaySongHandler(w http.ResponseWriter, r *http.Request) {
	songID, ok := songIDVar(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.songs.IncrementPlayCount(r.Context(), songID); err != nil {
		h.serverError(w, r, err)
		return
	}
	sess := currentSession(r)
	sess.AddFlash(session.FlashSuccess, "Song played!")
	h.redirect(w, r, sess, "/")
}
