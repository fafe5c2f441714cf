package handlers

import (
	"encoding/json"
	"net/http"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/job"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Orchestrator *job.Orchestrator
	Ledger       domain.CreditLedger
	Logger       infra.Logger
}

func NewApp(orc *job.Orchestrator, ledger domain.CreditLedger, logger infra.Logger) *App {
	return &App{Orchestrator: orc, Ledger: ledger, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: kind, Message: message})
}
