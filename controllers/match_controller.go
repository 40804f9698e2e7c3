package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rootdrew27/DISCO/services"
)

// MatchController handles HTTP requests for active-match lookups
type MatchController struct {
	ActiveMatches *services.ActiveMatchService
}

// NewMatchController creates a new MatchController instance
func NewMatchController(activeMatches *services.ActiveMatchService) *MatchController {
	return &MatchController{ActiveMatches: activeMatches}
}

// GetActiveMatches handles listing all currently active matches
func (mc *MatchController) GetActiveMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := mc.ActiveMatches.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch matches: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"matches": matches,
	})
}

// GetRole reports whether a display name is a recognized participant of an
// active match ("discussor") or a viewer; 404 when the match does not exist
func (mc *MatchController) GetRole(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	username := r.URL.Query().Get("username")
	if matchID == "" || username == "" {
		http.Error(w, "matchId and username are required", http.StatusBadRequest)
		return
	}

	role, err := mc.ActiveMatches.Role(r.Context(), matchID, username)
	if err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			http.Error(w, "Match not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to fetch role: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"role": role,
	})
}

// sessionEvent is the shape of the media-server webhook we consume: the
// room name is the match id.
type sessionEvent struct {
	Event string `json:"event"`
	Room  *struct {
		Name            string `json:"name"`
		NumParticipants int    `json:"numParticipants"`
	} `json:"room"`
}

// SessionWebhook consumes the external session-ended signal and retires the
// corresponding active match
func (mc *MatchController) SessionWebhook(w http.ResponseWriter, r *http.Request) {
	var event sessionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}
	if event.Room == nil || event.Room.Name == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Event {
	case "room_finished":
		mc.removeMatch(w, r, event.Room.Name)
	case "participant_left":
		// An emptied room ends the session even without room_finished.
		if event.Room.NumParticipants == 0 {
			mc.removeMatch(w, r, event.Room.Name)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (mc *MatchController) removeMatch(w http.ResponseWriter, r *http.Request, matchID string) {
	if err := mc.ActiveMatches.Remove(r.Context(), matchID); err != nil {
		http.Error(w, fmt.Sprintf("Failed to remove match: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
