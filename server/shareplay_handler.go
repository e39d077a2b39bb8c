package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"StuffChat/core/room"
	"StuffChat/logger"

	"github.com/gorilla/mux"
)

// Locator 从房间 hub 查询条目文件
type Locator interface {
	SongLocation(ctx context.Context, itemID string) (string, bool)
	ThumbnailLocation(ctx context.Context, itemID string) (string, bool)
	CurrentTrack(ctx context.Context, roomID string) (string, bool)
}

// SharePlayHandler 一起听的 HTTP 接口
type SharePlayHandler struct {
	locator Locator
	access  room.Authorizer
}

// NewSharePlayHandler access 为 nil 时不检查频道权限
func NewSharePlayHandler(locator Locator, access room.Authorizer) *SharePlayHandler {
	return &SharePlayHandler{locator: locator, access: access}
}

type currentTrackResponse struct {
	SongID *string `json:"song_id"`
}

// CurrentHandler GET /api/shareplay/{channel_id}/current
func (h *SharePlayHandler) CurrentHandler(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel_id"]
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.access != nil {
		ok, err := h.access.CanAccess(r.Context(), channelID, userID)
		if err != nil {
			logger.Error("failed to check channel access", logger.String("channel", channelID), logger.ErrorField(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !ok {
			logger.Warn("authorization denied",
				logger.String("channel", channelID),
				logger.String("user", userID))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var resp currentTrackResponse
	if id, ok := h.locator.CurrentTrack(r.Context(), channelID); ok {
		resp.SongID = &id
	}

	noCache(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SongHandler GET /api/shareplay/song/{song_id}
func (h *SharePlayHandler) SongHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["song_id"]
	path, ok := h.locator.SongLocation(r.Context(), id)
	if !ok {
		http.Error(w, "Song not found", http.StatusNotFound)
		return
	}
	serveItemFile(w, r, path)
}

// ThumbnailHandler GET /api/shareplay/thumbnail/{item_id}
func (h *SharePlayHandler) ThumbnailHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["item_id"]
	path, ok := h.locator.ThumbnailLocation(r.Context(), id)
	if !ok {
		http.Error(w, "Thumbnail not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	serveItemFile(w, r, path)
}

// serveItemFile 文件可能在查询之后被清理
func serveItemFile(w http.ResponseWriter, r *http.Request, path string) {
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	noCache(w)
	http.ServeFile(w, r, path)
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
