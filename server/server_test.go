package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"StuffChat/core/auth"
	"StuffChat/core/room"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func issue(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewTokenManager(testSecret).IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

type fakeLocator struct {
	songs   map[string]string
	thumbs  map[string]string
	current map[string]string
}

func (f fakeLocator) SongLocation(ctx context.Context, id string) (string, bool) {
	p, ok := f.songs[id]
	return p, ok
}

func (f fakeLocator) ThumbnailLocation(ctx context.Context, id string) (string, bool) {
	p, ok := f.thumbs[id]
	return p, ok
}

func (f fakeLocator) CurrentTrack(ctx context.Context, roomID string) (string, bool) {
	id, ok := f.current[roomID]
	return id, ok
}

type denyAll struct{}

func (denyAll) CanAccess(context.Context, string, string) (bool, error) { return false, nil }

func sharePlayRouter(locator Locator, access room.Authorizer) *mux.Router {
	h := NewSharePlayHandler(locator, access)
	mw := AuthMiddleware(auth.NewTokenManager(testSecret))
	router := mux.NewRouter()
	router.HandleFunc("/api/shareplay/song/{song_id}", mw(h.SongHandler))
	router.HandleFunc("/api/shareplay/thumbnail/{item_id}", mw(h.ThumbnailHandler))
	router.HandleFunc("/api/shareplay/{channel_id}/current", mw(h.CurrentHandler))
	return router
}

func TestAuthMiddleware(t *testing.T) {
	var seen string
	handler := AuthMiddleware(auth.NewTokenManager(testSecret))(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserIDFromContext(r.Context())
	})
	token := issue(t, "42")

	tests := []struct {
		name   string
		header string
		query  string
		status int
		user   string
	}{
		{name: "bearer header", header: "Bearer " + token, status: http.StatusOK, user: "42"},
		{name: "query token", query: "?token=" + token, status: http.StatusOK, user: "42"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, seen)
		})
	}
}

func TestCurrentHandler(t *testing.T) {
	router := sharePlayRouter(fakeLocator{current: map[string]string{"general": "item-1"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/shareplay/general/current?token="+issue(t, "42"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
	assert.JSONEq(t, `{"song_id":"item-1"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/shareplay/empty/current?token="+issue(t, "42"), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"song_id":null}`, rec.Body.String())
}

func TestCurrentHandlerDeniesNonMembers(t *testing.T) {
	router := sharePlayRouter(fakeLocator{current: map[string]string{"general": "item-1"}}, denyAll{})

	req := httptest.NewRequest(http.MethodGet, "/api/shareplay/general/current", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, "42"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSongAndThumbnailHandlers(t *testing.T) {
	dir := t.TempDir()
	song := filepath.Join(dir, "item-1.opus")
	thumb := filepath.Join(dir, "item-1_thumb.jpg")
	require.NoError(t, os.WriteFile(song, []byte("audio-bytes"), 0644))
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg-bytes"), 0644))

	router := sharePlayRouter(fakeLocator{
		songs:  map[string]string{"item-1": song, "gone": filepath.Join(dir, "gone.opus")},
		thumbs: map[string]string{"item-1": thumb},
	}, nil)
	token := issue(t, "42")

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path+"?token="+token, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/api/shareplay/song/item-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio-bytes", rec.Body.String())

	rec = get("/api/shareplay/thumbnail/item-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/api/shareplay/song/missing").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/shareplay/song/gone").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/shareplay/thumbnail/missing").Code)
}

func TestCORS(t *testing.T) {
	handler := corsMiddleware([]string{"https://chat.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "https://chat.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://chat.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func startTestServer(t *testing.T) (*httptest.Server, *room.Hub) {
	t.Helper()
	hub := room.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := NewRouter(Routes{
		Hub:        hub,
		Dispatcher: room.NewDispatcher(hub),
		Tokens:     auth.NewTokenManager(testSecret),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string     `json:"status"`
		Hub    room.Stats `json:"hub"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func readMessage(t *testing.T, conn *websocket.Conn) room.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg room.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketSession(t *testing.T) {
	srv, _ := startTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+issue(t, "42"), nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	require.Equal(t, room.MsgTypeConnectionMetadata, msg.Type)
	var meta room.ConnectionMetadataData
	require.NoError(t, json.Unmarshal(msg.Data, &meta))
	assert.NotEmpty(t, meta.SessionID)
	assert.Equal(t, meta.SessionID, msg.SessionID)
	assert.Equal(t, "42", msg.UserID)

	require.NoError(t, conn.WriteJSON(room.WSMessage{Type: room.MsgTypePing}))
	assert.Equal(t, room.MsgTypePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(room.WSMessage{Type: room.MsgTypeJoin, RoomID: "general"}))
	state := readMessage(t, conn)
	assert.Equal(t, room.MsgTypeRoomState, state.Type)
	assert.Equal(t, "general", state.RoomID)
}

func TestRouterAnswersPreflight(t *testing.T) {
	router := NewRouter(Routes{
		Hub:            room.NewHub(),
		Dispatcher:     room.NewDispatcher(room.NewHub()),
		Tokens:         auth.NewTokenManager(testSecret),
		AllowedOrigins: []string{"https://chat.example"},
	})

	for _, path := range []string{"/api/shareplay/song/abc", "/api/shareplay/general/current", "/api/presence/users"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://chat.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			req.Header.Set("Access-Control-Request-Headers", "authorization")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "https://chat.example", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}
}

type fakeOnline struct {
	online map[string]bool
	err    error
}

func (f fakeOnline) IsOnline(ctx context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.online[userID], nil
}

func presenceRouter(online OnlineChecker) http.Handler {
	return NewRouter(Routes{
		Hub:        room.NewHub(),
		Dispatcher: room.NewDispatcher(room.NewHub()),
		Tokens:     auth.NewTokenManager(testSecret),
		Online:     online,
	})
}

func TestPresenceUsers(t *testing.T) {
	router := presenceRouter(fakeOnline{online: map[string]bool{"42": true, "7": true}})
	token := issue(t, "42")

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/presence/users"+query, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("?ids=9,%207,,7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"user_id":"7","status":"online"},{"user_id":"9","status":"offline"}]`, rec.Body.String())

	rec = get("")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"user_id":"42","status":"online"}]`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/presence/users?ids=7", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPresenceUsersUnavailable(t *testing.T) {
	token := issue(t, "42")
	for name, online := range map[string]OnlineChecker{
		"not configured": nil,
		"redis error":    fakeOnline{err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/presence/users?ids=7&token="+token, nil)
			rec := httptest.NewRecorder()
			presenceRouter(online).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		})
	}
}
