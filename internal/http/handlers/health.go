package handlers

import "net/http"

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "talkinghead",
	})
}
