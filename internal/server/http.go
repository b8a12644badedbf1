package server

import (
	"encoding/json"
	"net/http"
	_ "net/http/pprof" // Profiling

	"boardgame-server/internal/match"
	"boardgame-server/internal/version"
	"boardgame-server/pkg/logger"
)

// Server - HTTP/WebSocket фасад над сервисом матчей.
type Server[C any] struct {
	Matches *match.Service[C]
	Port    string
}

func New[C any](matches *match.Service[C], port string) *Server[C] {
	return &Server[C]{
		Matches: matches,
		Port:    port,
	}
}

// Run запускает HTTP сервер
func (s *Server[C]) Run() error {
	mux := http.DefaultServeMux

	// Регистрируем роуты
	mux.HandleFunc("/ws", enableCORS(s.handleWS))
	mux.HandleFunc("/health", enableCORS(s.handleHealth))
	mux.HandleFunc("/version", enableCORS(s.handleVersion))

	debugHandler := NewDebugHandler(s.Matches)
	debugHandler.RegisterRoutes(mux)

	logger.Log.Infof("🎲 Board game server (%s) running on :%s", s.Matches.GameID, s.Port)
	return http.ListenAndServe(":"+s.Port, mux)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next(w, r)
	}
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server[C]) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("Upgrade error:", err)
		return
	}

	client := NewClient(s.Matches, conn)

	// Запускаем пампы
	go client.writePump()
	go client.readPump()
}

func (s *Server[C]) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server[C]) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Info())
}
