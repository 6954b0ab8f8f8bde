package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/room"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// APIHandler serves the small read-only HTTP surface next to the websocket:
// lobby listing, lobby search and a health probe.
type APIHandler struct {
	Manager *room.Manager
	Log     *logrus.Logger
}

func NewAPIHandler(mgr *room.Manager, log *logrus.Logger) *APIHandler {
	return &APIHandler{Manager: mgr, Log: log}
}

func (h *APIHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": h.Manager.PublicRooms()})
}

func (h *APIHandler) SearchRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": h.Manager.SearchRooms(q)})
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"rooms":  h.Manager.RoomCount(),
	})
}
