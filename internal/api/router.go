package api

import (
	"isochrone-explorer/internal/api/handlers"
	"net/http"
)

// NewRouter wires HTTP handlers with the session they drive and returns an http.Handler.
func NewRouter(session handlers.SessionService) http.Handler {
	mux := http.NewServeMux()

	sessionHandler := &handlers.SessionHandler{Session: session}

	mux.HandleFunc("/", handlers.Index)
	mux.HandleFunc("/health", handlers.Health(session.State))
	mux.HandleFunc("/api/session", sessionHandler.Get)
	mux.HandleFunc("/api/origin", sessionHandler.Origin)
	mux.HandleFunc("/api/destination", sessionHandler.Destination)
	mux.HandleFunc("/api/isochrone", sessionHandler.Isochrone)
	mux.HandleFunc("/api/transitive", sessionHandler.Transitive)

	return requestIDMiddleware(loggingMiddleware(mux))
}
