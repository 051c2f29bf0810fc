package server

import (
	"net/http"
	"strconv"

	"musicbox/core/session"
	"musicbox/logger"
	"musicbox/repository"
	"musicbox/storage"

	"github.com/gorilla/mux"
)

// Handler serves every page of the application.
type Handler struct {
	users     repository.UserRepository
	songs     repository.SongRepository
	favorites repository.FavoriteRepository
	media     storage.MediaStore
	sessions  *session.Manager
	views     *views
	forms     *formValidator
	maxUpload int64
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Users          repository.UserRepository
	Songs          repository.SongRepository
	Favorites      repository.FavoriteRepository
	Media          storage.MediaStore
	Sessions       *session.Manager
	MaxUploadBytes int64
}

// NewHandler creates a Handler and parses the page templates.
func NewHandler(deps Deps) (*Handler, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &Handler{
		users:     deps.Users,
		songs:     deps.Songs,
		favorites: deps.Favorites,
		media:     deps.Media,
		sessions:  deps.Sessions,
		views:     v,
		forms:     newFormValidator(),
		maxUpload: maxUpload,
	}, nil
}

// NewRouter wires routes to h. Routes wrapped in RequireLogin are protected.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests, h.loadSession)

	router.HandleFunc("/", h.RequireLogin(h.HomeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.RequireLogin(h.UploadPageHandler)).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.RequireLogin(h.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/favorites", h.RequireLogin(h.FavoritesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/add_favorite/{id:[0-9]+}", h.RequireLogin(h.AddFavoriteHandler)).Methods(http.MethodGet)
	router.HandleFunc("/remove_favorite/{id:[0-9]+}", h.RequireLogin(h.RemoveFavoriteHandler)).Methods(http.MethodGet)
	router.HandleFunc("/play_song/{id:[0-9]+}", h.RequireLogin(h.PlaySongHandler)).Methods(http.MethodPost)

	router.HandleFunc("/signup", h.SignupPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/signup", h.SignupHandler).Methods(http.MethodPost)
	router.HandleFunc("/login", h.LoginPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodGet)

	router.HandleFunc("/static/music/{filename}", h.MediaHandler).Methods(http.MethodGet, http.MethodHead)

	return router
}

// currentSession returns the session attached by loadSession.
func currentSession(r *http.Request) *session.Session {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		// loadSession always runs first; this only guards direct handler calls.
		return &session.Session{}
	}
	return sess
}

// songIDVar parses the {id} route variable. The route pattern guarantees digits,
// so the only failure is overflow.
func songIDVar(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("request failed",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.ErrorField(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
