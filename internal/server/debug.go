package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/match"
	"boardgame-server/pkg/api"
)

// DebugHandler предоставляет доступ к внутреннему состоянию матчей.
// Эндпоинты не предназначены для продакшена за пределами стейджинга.
type DebugHandler[C any] struct {
	Matches *match.Service[C]
}

func NewDebugHandler[C any](m *match.Service[C]) *DebugHandler[C] {
	return &DebugHandler[C]{Matches: m}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler[C]) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/matches", h.handleListMatches)
	mux.HandleFunc("/debug/match/create", h.handleCreateMatch)
	mux.HandleFunc("/debug/match/state", h.handleMatchState)
	mux.HandleFunc("/debug/match/events", h.handleMatchEvents)
	mux.HandleFunc("/debug/match/command", h.handleMatchCommand)
	mux.HandleFunc("/debug/match/replay", h.handleSaveReplay)
}

// /debug/matches - список живых матчей
func (h *DebugHandler[C]) handleListMatches(w http.ResponseWriter, r *http.Request) {
	type MatchSummary struct {
		ID          string `json:"id"`
		Players     int    `json:"players"`
		Cursor      int    `json:"cursor"`
		Subscribers int    `json:"subscribers"`
	}

	var summary []MatchSummary
	for _, id := range h.Matches.IDs() {
		inst, ok := h.Matches.Get(id)
		if !ok {
			continue
		}
		summary = append(summary, MatchSummary{
			ID:          id,
			Players:     len(inst.Players),
			Cursor:      inst.Cursor(),
			Subscribers: h.Matches.Hub.SubscriberCount(id),
		})
	}
	writeJSON(w, summary)
}

// POST /debug/match/create {"players":["p1","p2"],"seed":0}
func (h *DebugHandler[C]) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Players []string `json:"players"`
		Seed    int64    `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	players := make([]engine.PlayerID, len(req.Players))
	for i, p := range req.Players {
		players[i] = engine.PlayerID(p)
	}
	inst, err := h.Matches.Create(players, req.Seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"id": inst.ID, "seed": inst.Seed})
}

// /debug/match/state?id=... - полный дамп состояния
func (h *DebugHandler[C]) handleMatchState(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.Matches.Get(r.URL.Query().Get("id"))
	if !ok {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}
	snapshot, err := inst.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(snapshot)
}

// /debug/match/events?id=...&cursor=N - события журнала после курсора
func (h *DebugHandler[C]) handleMatchEvents(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.Matches.Get(r.URL.Query().Get("id"))
	if !ok {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}
	cursor, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	writeJSON(w, inst.EventsSince(cursor))
}

// POST /debug/match/command?id=... - команда в обход WebSocket
// (включая CHEAT, если чит-канал собран включенным).
func (h *DebugHandler[C]) handleMatchCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var cmd api.ClientCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.Matches.HandleCommand(r.URL.Query().Get("id"), cmd))
}

// POST /debug/match/replay?id=... - сохранить реплей на диск
func (h *DebugHandler[C]) handleSaveReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	path, err := h.Matches.SaveReplay(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"path": path})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
