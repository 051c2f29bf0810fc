package server

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"musicbox/core/session"
	"musicbox/db"
	"musicbox/repository"
	"musicbox/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	t        *testing.T
	srv      *httptest.Server
	conn     *sql.DB
	mediaDir string
	store    *session.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	conn, err := db.OpenSQLite(ctx, filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitDB(ctx, conn, db.SQLite))

	mediaDir := filepath.Join(dir, "music")
	media, err := storage.NewDiskStore(mediaDir)
	require.NoError(t, err)
	t.Cleanup(func() { media.Close() })

	store := session.NewMemoryStore()
	sessions, err := session.NewManager(store, session.Options{Secret: []byte("test-secret")})
	require.NoError(t, err)

	h, err := NewHandler(Deps{
		Users:          repository.NewUserRepository(conn),
		Songs:          repository.NewSongRepository(conn),
		Favorites:      repository.NewFavoriteRepository(conn),
		Media:          media,
		Sessions:       sessions,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testApp{t: t, srv: srv, conn: conn, mediaDir: mediaDir, store: store}
}

// newClient returns a browser-like client with its own cookie jar that does not
// follow redirects.
func (a *testApp) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type result struct {
	status   int
	location string
	body     string
	header   http.Header
}

func (a *testApp) do(c *http.Client, req *http.Request) result {
	a.t.Helper()
	resp, err := c.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return result{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(body),
		header:   resp.Header,
	}
}

func (a *testApp) get(c *http.Client, path string) result {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.srv.URL+path, nil)
	require.NoError(a.t, err)
	return a.do(c, req)
}

func (a *testApp) postForm(c *http.Client, path string, form url.Values) result {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(c, req)
}

func (a *testApp) upload(c *http.Client, fields map[string]string, filename string, content []byte) result {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(a.t, err)
		_, err = part.Write(content)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/upload", &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(c, req)
}

func (a *testApp) signup(c *http.Client, username, password string) result {
	return a.postForm(c, "/signup", url.Values{"username": {username}, "password": {password}})
}

func (a *testApp) login(c *http.Client, username, password string) result {
	return a.postForm(c, "/login", url.Values{"username": {username}, "password": {password}})
}

// loggedIn signs up and logs in a fresh client.
func (a *testApp) loggedIn(username string) *http.Client {
	a.t.Helper()
	c := a.newClient()
	res := a.signup(c, username, "pw-"+username)
	require.Equal(a.t, "/login", res.location)
	res = a.login(c, username, "pw-"+username)
	require.Equal(a.t, http.StatusFound, res.status)
	require.Equal(a.t, "/", res.location)
	return c
}

func (a *testApp) count(query string, args ...any) int64 {
	a.t.Helper()
	var n int64
	require.NoError(a.t, a.conn.QueryRow(query, args...).Scan(&n))
	return n
}

func (a *testApp) playCount(songID int64) int64 {
	return a.count("SELECT play_count FROM songs WHERE id = ?", songID)
}

func TestSignupThenLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	res := app.signup(c, "alice", "secret")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login", res.location)

	page := app.get(c, "/login")
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, "Signup successful! Please log in.")

	var hash string
	require.NoError(t, app.conn.QueryRow("SELECT password_hash FROM users WHERE username = ?", "alice").Scan(&hash))
	assert.NotEqual(t, "secret", hash)

	res = app.login(c, "alice", "secret")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)

	home := app.get(c, "/")
	assert.Equal(t, http.StatusOK, home.status)
	assert.Contains(t, home.body, "Login successful!")
	assert.Contains(t, home.body, "Welcome, alice")

	// Flashes are shown once.
	home = app.get(c, "/")
	assert.NotContains(t, home.body, "Login successful!")
}

func TestSignupDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	require.Equal(t, "/login", app.signup(c, "bob", "one").location)
	res := app.signup(c, "bob", "two")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/signup", res.location)

	page := app.get(c, "/signup")
	assert.Contains(t, page.body, "Username already exists. Try a different one.")
	assert.Equal(t, int64(1), app.count("SELECT COUNT(*) FROM users WHERE username = 'bob'"))

	// The first password still works.
	assert.Equal(t, "/", app.login(c, "bob", "one").location)
}

func TestSignupMissingFields(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	res := app.signup(c, "carol", "")
	assert.Equal(t, "/signup", res.location)
	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM users"))
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()
	require.Equal(t, "/login", app.signup(c, "dave", "right").location)
	app.get(c, "/login") // consume the signup flash

	for name, form := range map[string][2]string{
		"wrong password": {"dave", "wrong"},
		"unknown user":   {"nobody", "right"},
		"empty password": {"dave", ""},
	} {
		t.Run(name, func(t *testing.T) {
			res := app.login(c, form[0], form[1])
			assert.Equal(t, http.StatusOK, res.status)
			assert.Contains(t, res.body, "Invalid username or password.")
			assert.Contains(t, res.body, `action="/login"`)

			home := app.get(c, "/")
			assert.Equal(t, "/login", home.location, "session must stay anonymous")
		})
	}
}

func TestProtectedRoutesRedirectAnonymous(t *testing.T) {
	app := newTestApp(t)
	owner := app.loggedIn("erin")
	require.Equal(t, "/", app.upload(owner, map[string]string{"title": "T", "artist": "A"}, "t.mp3", []byte("x")).location)

	anon := app.newClient()
	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/upload"},
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/favorites"},
		{http.MethodGet, "/add_favorite/1"},
		{http.MethodGet, "/remove_favorite/1"},
		{http.MethodPost, "/play_song/1"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, app.srv.URL+tc.path, nil)
			require.NoError(t, err)
			res := app.do(anon, req)
			assert.Equal(t, http.StatusFound, res.status)
			assert.Equal(t, "/login", res.location)

			page := app.get(anon, "/login")
			assert.Contains(t, page.body, "You need to log in to access this page.")
		})
	}

	assert.Equal(t, int64(1), app.count("SELECT COUNT(*) FROM songs"))
	assert.Equal(t, int64(0), app.playCount(1))
	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM favorites"))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("frank")

	res := app.get(c, "/logout")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login", res.location)

	page := app.get(c, "/login")
	assert.Contains(t, page.body, "Logged out successfully.")

	assert.Equal(t, "/login", app.get(c, "/").location)
}

func TestLogoutRevokesOldCookie(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("gina")

	u, err := url.Parse(app.srv.URL)
	require.NoError(t, err)
	saved := c.Jar.Cookies(u)
	require.NotEmpty(t, saved)

	app.get(c, "/logout")

	replay := app.newClient()
	replay.Jar.SetCookies(u, saved)
	assert.Equal(t, "/login", app.get(replay, "/").location)
}

func TestUploadStoresFileAndSong(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("hank")

	res := app.upload(c, map[string]string{"title": "Song A", "artist": "Band"}, "a.mp3", []byte("ID3-audio"))
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)

	data, err := os.ReadFile(filepath.Join(app.mediaDir, "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), data)

	var title, artist, filename string
	var plays int64
	require.NoError(t, app.conn.QueryRow("SELECT title, artist, filename, play_count FROM songs").Scan(&title, &artist, &filename, &plays))
	assert.Equal(t, "Song A", title)
	assert.Equal(t, "Band", artist)
	assert.Equal(t, "a.mp3", filename)
	assert.Equal(t, int64(0), plays)

	home := app.get(c, "/")
	assert.Contains(t, home.body, "Song A")
	assert.Contains(t, home.body, `src="/static/music/a.mp3"`)

	media := app.get(c, "/static/music/a.mp3")
	assert.Equal(t, http.StatusOK, media.status)
	assert.Equal(t, "audio/mpeg", media.header.Get("Content-Type"))
	assert.Equal(t, "ID3-audio", media.body)
}

func TestUploadRejectsIncompleteForm(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("ivy")

	for name, tc := range map[string]struct {
		fields   map[string]string
		filename string
	}{
		"no file":   {map[string]string{"title": "T", "artist": "A"}, ""},
		"no title":  {map[string]string{"artist": "A"}, "x.mp3"},
		"no artist": {map[string]string{"title": "T"}, "x.mp3"},
	} {
		t.Run(name, func(t *testing.T) {
			res := app.upload(c, tc.fields, tc.filename, []byte("data"))
			assert.Equal(t, http.StatusFound, res.status)
			assert.Equal(t, "/upload", res.location)
		})
	}

	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM songs"))
	entries, err := os.ReadDir(app.mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("una")

	res := app.upload(c, map[string]string{"title": "Big", "artist": "A"}, "big.mp3", bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/upload", res.location)

	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM songs"))
	entries, err := os.ReadDir(app.mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

var audioSrc = regexp.MustCompile(`<audio[^>]* src="([^"]+)"`)

func TestMediaLinksEscapeFilenames(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("vera")

	names := []string{"a#b.mp3", "what?.mp3", "100%25.mp3", "two words.mp3"}
	for _, name := range names {
		require.Equal(t, "/", app.upload(c, map[string]string{"title": name, "artist": "A"}, name, []byte("body:"+name)).location)
		app.get(c, "/add_favorite/"+strconv.FormatInt(app.count("SELECT MAX(id) FROM songs"), 10))
	}

	for _, page := range []string{"/", "/favorites"} {
		matches := audioSrc.FindAllStringSubmatch(app.get(c, page).body, -1)
		require.Len(t, matches, len(names), page)
		for i, m := range matches {
			media := app.get(c, m[1])
			assert.Equal(t, http.StatusOK, media.status, "%s %s", page, m[1])
			assert.Equal(t, "body:"+names[i], media.body)
		}
	}
}

func TestUploadSameFilenameOverwrites(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("jack")

	app.upload(c, map[string]string{"title": "First", "artist": "A"}, "same.mp3", []byte("one"))
	app.upload(c, map[string]string{"title": "Second", "artist": "B"}, "same.mp3", []byte("two"))

	assert.Equal(t, int64(2), app.count("SELECT COUNT(*) FROM songs WHERE filename = 'same.mp3'"))
	data, err := os.ReadFile(filepath.Join(app.mediaDir, "same.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func TestUploadPathTraversalStaysInMediaDir(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("kate")

	// multipart reduces the client's filename to its base name.
	res := app.upload(c, map[string]string{"title": "T", "artist": "A"}, "../../evil.mp3", []byte("x"))
	assert.Equal(t, "/", res.location)

	_, err := os.Stat(filepath.Join(app.mediaDir, "evil.mp3"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(filepath.Dir(app.mediaDir)), "evil.mp3"))
	assert.True(t, os.IsNotExist(err))
}

func TestPlaySongIncrementsCount(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("liam")
	app.upload(c, map[string]string{"title": "T", "artist": "A"}, "p.mp3", []byte("x"))

	for i := 0; i < 3; i++ {
		res := app.postForm(c, "/play_song/1", nil)
		assert.Equal(t, http.StatusFound, res.status)
		assert.Equal(t, "/", res.location)
	}
	assert.Equal(t, int64(3), app.playCount(1))

	home := app.get(c, "/")
	assert.Contains(t, home.body, "Song played!")
	assert.Contains(t, home.body, "<td>3</td>")
}

func TestPlaySongConcurrentIncrements(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("mia")
	app.upload(c, map[string]string{"title": "T", "artist": "A"}, "c.mp3", []byte("x"))

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/play_song/1", nil)
			if err != nil {
				return
			}
			resp, err := c.Do(req)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(n), app.playCount(1))
}

func TestPlayUnknownSongIsNoop(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("noah")

	res := app.postForm(c, "/play_song/42", nil)
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)
	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM songs"))
}

func TestPlaySongRequiresPost(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("olga")
	app.upload(c, map[string]string{"title": "T", "artist": "A"}, "g.mp3", []byte("x"))

	res := app.get(c, "/play_song/1")
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
	assert.Equal(t, int64(0), app.playCount(1))
}

func TestFavoritesAddListRemove(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("pia")
	app.upload(c, map[string]string{"title": "Fav Song", "artist": "A"}, "f.mp3", []byte("x"))

	res := app.get(c, "/add_favorite/1")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)
	app.get(c, "/add_favorite/1")
	assert.Equal(t, int64(2), app.count("SELECT COUNT(*) FROM favorites WHERE song_id = 1"))

	page := app.get(c, "/favorites")
	assert.Equal(t, http.StatusOK, page.status)
	assert.Equal(t, 2, strings.Count(page.body, "<td>Fav Song</td>"))

	res = app.get(c, "/remove_favorite/1")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/favorites", res.location)
	assert.Equal(t, int64(0), app.count("SELECT COUNT(*) FROM favorites"))

	page = app.get(c, "/favorites")
	assert.Contains(t, page.body, "No favorites yet.")
}

func TestFavoritesAreGlobal(t *testing.T) {
	app := newTestApp(t)
	a := app.loggedIn("quinn")
	b := app.loggedIn("rosa")
	app.upload(a, map[string]string{"title": "Shared", "artist": "A"}, "s.mp3", []byte("x"))

	app.get(a, "/add_favorite/1")
	assert.Contains(t, app.get(b, "/favorites").body, "<td>Shared</td>")
}

func TestFavoriteOfMissingSongIsHidden(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("sam")

	res := app.get(c, "/add_favorite/99")
	assert.Equal(t, "/", res.location)
	assert.Equal(t, int64(1), app.count("SELECT COUNT(*) FROM favorites WHERE song_id = 99"))
	assert.Contains(t, app.get(c, "/favorites").body, "No favorites yet.")
}

func TestMediaNotFound(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	assert.Equal(t, http.StatusNotFound, app.get(c, "/static/music/missing.mp3").status)
}

func TestMediaSupportsRange(t *testing.T) {
	app := newTestApp(t)
	c := app.loggedIn("tom")
	app.upload(c, map[string]string{"title": "T", "artist": "A"}, "r.mp3", []byte("0123456789"))

	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/static/music/r.mp3", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=2-4")
	res := app.do(c, req)
	assert.Equal(t, http.StatusPartialContent, res.status)
	assert.Equal(t, "234", res.body)
}

func TestAnonymousPagesDoNotStoreSessions(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient()

	res := app.get(c, "/login")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Empty(t, res.header.Values("Set-Cookie"))
	assert.Equal(t, 0, app.store.Len())
}
