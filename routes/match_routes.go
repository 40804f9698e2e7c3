package routes

import (
	"github.com/gorilla/mux"

	"github.com/rootdrew27/DISCO/controllers"
	"github.com/rootdrew27/DISCO/services"
)

// RegisterMatchRoutes sets up the read-only active-match endpoints under
// /api/matches and the session-ended webhook.
func RegisterMatchRoutes(r *mux.Router, activeMatches *services.ActiveMatchService) {
	controller := controllers.NewMatchController(activeMatches)

	matchRouter := r.PathPrefix("/api/matches").Subrouter()
	matchRouter.HandleFunc("", controller.GetActiveMatches).Methods("GET")
	matchRouter.HandleFunc("/{matchId}/role", controller.GetRole).Methods("GET")

	r.HandleFunc("/livekit-webhook", controller.SessionWebhook).Methods("POST")
}
