// Package match - хостинг матчей: жизненный цикл, сериализация доступа
// и трансляция обновлений. Конкурентность существует только между
// матчами; внутри матча команды строго последовательны.
package match

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/infrastructure/storage"
	"boardgame-server/pkg/api"
)

// Instance - один живой матч. Все обращения к состоянию идут под
// мьютексом: конвейер не потокобезопасен и не обязан им быть.
type Instance[C any] struct {
	ID        string
	GameID    string
	Seed      int64
	CreatedAt int64
	Players   []engine.PlayerID

	mu       sync.Mutex
	pipeline *engine.Pipeline[C]
	state    *engine.MatchState[C]
	// commands - принятые команды в порядке поступления (включая
	// отклоненные: реплей обязан воспроизводить и отказы).
	commands []engine.Command
	log      *logrus.Entry
}

// Submit прогоняет команду через конвейер. Одна команда за раз:
// параллельные вызовы выстраиваются в очередь на мьютексе.
func (i *Instance[C]) Submit(cmd engine.Command) engine.Result[C] {
	i.mu.Lock()
	defer i.mu.Unlock()

	res := i.pipeline.Execute(i.state, cmd)
	i.commands = append(i.commands, cmd)

	entry := i.log.WithFields(logrus.Fields{
		"command": cmd.Type,
		"player":  cmd.PlayerID,
	})
	if res.Success {
		entry.WithField("events", len(res.Events)).Debug("Command applied")
	} else {
		entry.WithField("reason", res.Error).Info("Command rejected")
	}
	return res
}

// Update собирает UPDATE-сообщение: события после prevCursor плюс
// срез подвешенного состояния.
func (i *Instance[C]) Update(prevCursor int) api.ServerMessage {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.updateLocked(prevCursor)
}

func (i *Instance[C]) updateLocked(prevCursor int) api.ServerMessage {
	sys := &i.state.Sys

	msg := api.ServerMessage{
		Type:      api.MessageUpdate,
		MatchID:   i.ID,
		Cursor:    sys.EventLog.LastID(),
		Events:    eventViews(sys.EventLog.EntriesSince(prevCursor)),
		Phase:     sys.Phase,
		Suspended: sys.Suspended(),
	}

	if cur := sys.Interaction.Current; cur != nil {
		msg.Interaction = &api.InteractionView{
			ID:       cur.ID,
			Kind:     cur.Kind,
			PlayerID: string(cur.PlayerID),
			Data:     cur.Data,
		}
	}
	if win := sys.ResponseWindow.Active; win != nil {
		msg.Window = &api.WindowView{
			WindowType:        win.WindowType,
			EligiblePlayerIDs: playerStrings(win.EligiblePlayerIDs),
			PassedPlayerIDs:   playerStrings(win.PassedPlayerIDs),
		}
	}
	if over := sys.GameOver; over != nil {
		msg.GameOver = &api.GameOverView{
			WinnerIDs: playerStrings(over.WinnerIDs),
			Reason:    over.Reason,
		}
	}
	return msg
}

// EventsSince возвращает DTO событий с номером больше cursor.
func (i *Instance[C]) EventsSince(cursor int) []api.EventView {
	i.mu.Lock()
	defer i.mu.Unlock()
	return eventViews(i.state.Sys.EventLog.EntriesSince(cursor))
}

// Cursor - номер последнего события журнала.
func (i *Instance[C]) Cursor() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Sys.EventLog.LastID()
}

// Snapshot - полный дамп состояния матча (debug-эндпоинты).
func (i *Instance[C]) Snapshot() (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return json.Marshal(i.state)
}

// Session - слепок для персистенции реплея.
func (i *Instance[C]) Session() *storage.ReplaySession {
	i.mu.Lock()
	defer i.mu.Unlock()
	return &storage.ReplaySession{
		GameID:    i.GameID,
		Seed:      i.Seed,
		Timestamp: i.CreatedAt,
		Players:   append([]engine.PlayerID(nil), i.Players...),
		Commands:  append([]engine.Command(nil), i.commands...),
	}
}

func eventViews(recs []engine.EventRecord) []api.EventView {
	if len(recs) == 0 {
		return nil
	}
	out := make([]api.EventView, len(recs))
	for i, rec := range recs {
		out[i] = api.EventView{
			ID:        rec.ID,
			Type:      string(rec.Event.Type),
			Payload:   rec.Event.Payload,
			Timestamp: rec.Event.Timestamp,
		}
	}
	return out
}

func playerStrings(ids []engine.PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
