package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"StuffChat/logger"
)

const (
	presenceOnline  = "online"
	presenceOffline = "offline"
	maxPresenceIDs  = 100
)

// OnlineChecker 查询用户是否有存活的会话心跳
type OnlineChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type userPresence struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// PresenceHandler GET /api/presence/users?ids=a,b，省略 ids 时查询自己
func PresenceHandler(online OnlineChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if online == nil {
			http.Error(w, "Presence unavailable", http.StatusServiceUnavailable)
			return
		}

		ids := presenceIDs(r.URL.Query().Get("ids"), userID)
		if len(ids) > maxPresenceIDs {
			http.Error(w, "Too many ids", http.StatusBadRequest)
			return
		}
		out := make([]userPresence, 0, len(ids))
		for _, id := range ids {
			ok, err := online.IsOnline(r.Context(), id)
			if err != nil {
				logger.Error("failed to read user presence", logger.String("user", id), logger.ErrorField(err))
				http.Error(w, "Presence unavailable", http.StatusServiceUnavailable)
				return
			}
			status := presenceOffline
			if ok {
				status = presenceOnline
			}
			out = append(out, userPresence{UserID: id, Status: status})
		}

		noCache(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

// presenceIDs 去空白、去重并排序
func presenceIDs(raw, self string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{self}
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		ids = append(ids, part)
	}
	sort.Strings(ids)
	return ids
}
