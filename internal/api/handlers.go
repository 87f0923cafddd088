package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *routerHandlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.List()
	writeJSON(w, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (h *routerHandlers) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code, err := NormalizeRoomCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, info := range h.rooms.List() {
		if info.Code == code {
			writeJSON(w, info)
			return
		}
	}
	writeError(w, "room not found", http.StatusNotFound)
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	participants := 0
	rooms := h.rooms.List()
	for _, info := range rooms {
		participants += info.Participants
	}
	writeJSON(w, map[string]interface{}{
		"status":       "ok",
		"rooms":        len(rooms),
		"participants": participants,
		"httpLimiter": map[string]interface{}{
			"addresses": h.limiter.Tracked(),
			"throttled": h.limiter.Throttled(),
		},
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
