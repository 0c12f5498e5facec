package handlers

import (
	"isochrone-explorer/internal/domain"
	"net/http"
)

// Health reports liveness along with the session lifecycle status. It stays
// 200 while the session is loading or failed; the status field tells them apart.
func Health(state func() domain.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}

		res := map[string]string{
			"status":  "ok",
			"session": string(state().Status),
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}
