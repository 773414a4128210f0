package handlers

import (
	"encoding/json"
	"net/http"

	"talkinghead/internal/domain"
	"talkinghead/internal/generation"
	"talkinghead/internal/infra"
	"talkinghead/internal/storage"
)

// App bundles the handlers' collaborators.
type App struct {
	Store          domain.JobStore
	Files          *storage.FileStore
	Dispatcher     generation.Dispatcher
	Provider       generation.Provider
	Logger         infra.Logger
	MaxUploadBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": code, "message": message})
}
