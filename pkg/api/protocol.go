package api

import (
	"encoding/json"
)

// --- КЛИЕНТ -> СЕРВЕР ---

// Типы сообщений сервера.
const (
	MessageWelcome = "WELCOME"
	MessageUpdate  = "UPDATE"
	MessageError   = "ERROR"
)

// Handshake - первое сообщение клиента после подключения:
// к какому матчу и за кого он садится.
type Handshake struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// ClientCommand - команда игрока как она приходит по WebSocket.
// PlayerID подставляется сервером из рукопожатия: клиент не может
// говорить от чужого имени.
type ClientCommand struct {
	// Command - тип команды (доменной или уровня ядра).
	Command string `json:"command"`

	// PlayerID - идентификатор игрока. Заполняется при рукопожатии.
	PlayerID string `json:"playerId,omitempty"`

	// Payload - аргументы команды как есть; формат задает игра.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- СЕРВЕР -> КЛИЕНТ ---

// ServerMessage - корневой объект, который сервер отправляет клиенту.
// UPDATE приходит после каждой обработанной команды и несет новые
// события журнала с позиции Cursor плюс срез подвешенного состояния.
type ServerMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`

	// Cursor - номер последнего события в журнале после этого обновления.
	// Клиент хранит свой курсор и может дозапросить пропущенное.
	Cursor int `json:"cursor,omitempty"`

	// Events - новые события с прошлого курсора клиента.
	Events []EventView `json:"events,omitempty"`

	// Phase - текущая фаза матча.
	Phase string `json:"phase,omitempty"`

	// Suspended: матч ждет внешнего ввода (интеракция, окно, конец игры).
	Suspended bool `json:"suspended,omitempty"`

	// Interaction - активный выбор, если он есть.
	Interaction *InteractionView `json:"interaction,omitempty"`

	// Window - активное окно ответов, если оно есть.
	Window *WindowView `json:"window,omitempty"`

	// GameOver - итог матча, если он завершен.
	GameOver *GameOverView `json:"gameover,omitempty"`

	// Error - машиночитаемая причина отказа (для Type=ERROR).
	Error string `json:"error,omitempty"`
}

// EventView - DTO записи журнала событий.
type EventView struct {
	ID        int             `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// InteractionView - DTO активной интеракции.
type InteractionView struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	PlayerID string          `json:"playerId"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// WindowView - DTO активного окна ответов.
type WindowView struct {
	WindowType        string   `json:"windowType"`
	EligiblePlayerIDs []string `json:"eligiblePlayerIds"`
	PassedPlayerIDs   []string `json:"passedPlayerIds,omitempty"`
}

// GameOverView - DTO итога матча.
type GameOverView struct {
	WinnerIDs []string `json:"winnerIds,omitempty"`
	Reason    string   `json:"reason"`
}
