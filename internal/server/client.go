package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/match"
	"boardgame-server/pkg/api"
	"boardgame-server/pkg/logger"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между WebSocket и сервисом матчей.
type Client[C any] struct {
	Matches  *match.Service[C]
	Conn     *websocket.Conn
	Send     chan api.ServerMessage
	ClientID string
	MatchID  string
	PlayerID string
}

func NewClient[C any](matches *match.Service[C], conn *websocket.Conn) *Client[C] {
	return &Client[C]{
		Matches:  matches,
		Conn:     conn,
		Send:     make(chan api.ServerMessage, 256),
		ClientID: uuid.NewString(),
	}
}

// readPump читает команды от клиента
func (c *Client[C]) readPump() {
	defer func() {
		if c.MatchID != "" {
			c.Matches.Hub.Unregister(c.MatchID, c.ClientID)
		}
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close websocket connection")
		}
		logger.Log.WithFields(logrus.Fields{
			"match_id": c.MatchID,
			"player":   c.PlayerID,
		}).Info("Client disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	// 1. HANDSHAKE: клиент называет матч и своего игрока.
	var hs api.Handshake
	if err := c.Conn.ReadJSON(&hs); err != nil {
		logger.Log.Warn("Handshake failed")
		return
	}
	if err := hs.Validate(); err != nil {
		c.Send <- api.ServerMessage{Type: api.MessageError, Error: err.Error()}
		return
	}

	inst, ok := c.Matches.Get(hs.MatchID)
	if !ok {
		c.Send <- api.ServerMessage{Type: api.MessageError, MatchID: hs.MatchID, Error: "match_not_found"}
		return
	}
	if !rosterContains(inst.Players, hs.PlayerID) {
		c.Send <- api.ServerMessage{Type: api.MessageError, MatchID: hs.MatchID, Error: "unknown_player"}
		return
	}
	c.MatchID = hs.MatchID
	c.PlayerID = hs.PlayerID

	logger.Log.WithFields(logrus.Fields{
		"match_id": c.MatchID,
		"player":   c.PlayerID,
	}).Info("Client logged in")

	// 2. ПОДПИСКА НА ОБНОВЛЕНИЯ
	updates := c.Matches.Hub.Register(c.MatchID, c.ClientID)
	done := make(chan struct{})
	defer close(done)
	go forwardUpdates(updates, c.Send, done)

	// 3. WELCOME + актуальное состояние (события с нуля)
	c.Matches.Hub.SendTo(c.MatchID, c.ClientID, api.ServerMessage{Type: api.MessageWelcome, MatchID: c.MatchID})
	c.Matches.Hub.SendTo(c.MatchID, c.ClientID, inst.Update(0))

	// 4. ЦИКЛ ЧТЕНИЯ КОМАНД
	for {
		var cmd api.ClientCommand
		if err := c.Conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Errorf("WS Error: %v", err)
			}
			break
		}
		// Клиент не может говорить от чужого имени.
		cmd.PlayerID = c.PlayerID

		res := c.Matches.HandleCommand(c.MatchID, cmd)
		if res.Type == api.MessageError {
			// Отказ видит только отправитель.
			c.Matches.Hub.SendTo(c.MatchID, c.ClientID, res)
		}
	}
}

// writePump отправляет данные клиенту + Ping
func (c *Client[C]) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

// forwardUpdates гоняет сообщения хаба в канал отправки клиента.
// Выход по done обязателен: если writePump умер первым, send больше
// никто не читает, и без него горутина зависла бы на отправке навсегда.
func forwardUpdates(updates <-chan api.ServerMessage, send chan<- api.ServerMessage, done <-chan struct{}) {
	defer close(send)
	for msg := range updates {
		select {
		case send <- msg:
		case <-done:
			return
		}
	}
}

func rosterContains(players []engine.PlayerID, p string) bool {
	for _, id := range players {
		if string(id) == p {
			return true
		}
	}
	return false
}
