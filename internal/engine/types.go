// Package engine содержит ядро пошагового движка: конвейер
// команда -> события -> состояние и контракт подключаемых систем.
//
// Ядро ничего не знает о правилах конкретной игры. Правила подключаются
// через интерфейс Domain, а сквозные механики (фазы, интеракции,
// окна ответов) - через интерфейс System.
package engine

import (
	"encoding/json"

	"boardgame-server/pkg/random"
)

// PlayerID идентифицирует игрока внутри матча.
type PlayerID string

func (p PlayerID) String() string { return string(p) }

// CommandType - тег команды. Набор тегов закрыт для каждой игры:
// команда с незарегистрированным тегом не доходит до Domain.
type CommandType string

// EventType - тег события. События - единственный способ изменить Core.
type EventType string

// Command - единственный вход ядра. Приходит от транспорта или теста.
type Command struct {
	Type      CommandType     `json:"type"`
	PlayerID  PlayerID        `json:"playerId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Event - факт, произведенный командой. Reduce обязан быть чистой сверткой:
// никакого ввода-вывода и никакого чтения часов.
type Event struct {
	Type              EventType       `json:"type"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Timestamp         int64           `json:"timestamp"`
	SourceCommandType CommandType     `json:"sourceCommandType,omitempty"`
}

// NewEvent собирает событие с сериализованным payload.
// Паника при ошибке Marshal намеренна: payload задается кодом игры,
// несериализуемая структура - ошибка программиста, а не рантайма.
func NewEvent(t EventType, payload any, ts int64, source CommandType) Event {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic("engine: unmarshalable event payload for " + string(t) + ": " + err.Error())
		}
		raw = b
	}
	return Event{Type: t, Payload: raw, Timestamp: ts, SourceCommandType: source}
}

// Domain - контракт игрового плагина. Все четыре операции обязаны быть
// чистыми и синхронными; вся случайность - только через random.Source.
type Domain[C any] interface {
	// Setup создает начальный Core для набора игроков.
	Setup(players []PlayerID, rnd random.Source) (C, error)

	// Validate проверяет легальность команды в текущем состоянии.
	// Ошибка означает отказ без каких-либо изменений состояния.
	Validate(st *MatchState[C], cmd Command) error

	// Execute превращает команду в список событий.
	// Состояние здесь не меняется - только читается.
	Execute(st *MatchState[C], cmd Command, rnd random.Source) ([]Event, error)

	// Reduce применяет одно событие к Core и возвращает новый Core.
	// Вход мутировать нельзя.
	Reduce(core C, ev Event) (C, error)

	// CommandTypes возвращает закрытый набор команд этой игры.
	CommandTypes() []CommandType
}
