package systems

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

// Команды и события брокера интеракций.
const (
	CommandResolveChoice engine.CommandType = "RESOLVE_CHOICE"
	CommandCancelChoice  engine.CommandType = "CANCEL_CHOICE"

	EventChoiceResolved  engine.EventType = "SYS_CHOICE_RESOLVED"
	EventChoiceCancelled engine.EventType = "SYS_CHOICE_CANCELLED"
)

// ResolvePayload - payload команды RESOLVE_CHOICE: выбор игрока как есть.
// Формат Choice определяется резолвером конкретной интеракции.
type ResolvePayload struct {
	Choice json.RawMessage `json:"choice"`
}

// ChoiceResolvedPayload - payload события EventChoiceResolved.
type ChoiceResolvedPayload struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	SourceID string          `json:"sourceId"`
	PlayerID engine.PlayerID `json:"playerId"`
	Choice   json.RawMessage `json:"choice,omitempty"`
	// NextKind заполнен, когда резолвер продолжил цепочку следующим шагом.
	NextKind string `json:"nextKind,omitempty"`
}

// ChoiceCancelledPayload - payload события EventChoiceCancelled.
// По SourceID игра возвращает карту/ресурсы, потраченные на создание выбора.
type ChoiceCancelledPayload struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	SourceID string          `json:"sourceId"`
	PlayerID engine.PlayerID `json:"playerId"`
}

// Resolution - результат одного шага интеракции.
// Терминальный шаг возвращает только Events. Многошаговая интеракция
// возвращает Next: следующий дескриптор ВМЕСТО закрытия текущего,
// Context обязан переносить выбор предыдущих шагов.
type Resolution struct {
	Events []engine.Event
	Next   *engine.InteractionDescriptor
}

// Resolver обрабатывает ответ игрока на интеракцию с данным SourceID.
// Многошаговые семейства различают шаги по d.Kind - явная машина состояний
// вместо замыканий-продолжений.
type Resolver[C any] interface {
	Resolve(st *engine.MatchState[C], d engine.InteractionDescriptor, choice json.RawMessage, ts int64) (Resolution, error)
}

// ResolverFunc - адаптер функции под Resolver.
type ResolverFunc[C any] func(st *engine.MatchState[C], d engine.InteractionDescriptor, choice json.RawMessage, ts int64) (Resolution, error)

func (f ResolverFunc[C]) Resolve(st *engine.MatchState[C], d engine.InteractionDescriptor, choice json.RawMessage, ts int64) (Resolution, error) {
	return f(st, d, choice, ts)
}

// Registry - реестр резолверов по SourceID. Заполняется при регистрации
// игры; полнота проверяется статическим аудитом (testkit.AuditInteractions).
type Registry[C any] struct {
	resolvers map[string]Resolver[C]
}

func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{resolvers: make(map[string]Resolver[C])}
}

// Register привязывает резолвер к SourceID.
// Повторная регистрация - ошибка программиста, паникуем сразу.
func (r *Registry[C]) Register(sourceID string, res Resolver[C]) {
	if _, dup := r.resolvers[sourceID]; dup {
		panic("systems: duplicate resolver for sourceId " + sourceID)
	}
	r.resolvers[sourceID] = res
}

// RegisterFunc - удобный шорткат для Register(ResolverFunc).
func (r *Registry[C]) RegisterFunc(sourceID string, f ResolverFunc[C]) {
	r.Register(sourceID, f)
}

func (r *Registry[C]) Lookup(sourceID string) (Resolver[C], bool) {
	res, ok := r.resolvers[sourceID]
	return res, ok
}

// SourceIDs возвращает зарегистрированные идентификаторы (отсортированы,
// чтобы отчеты аудита были стабильными).
func (r *Registry[C]) SourceIDs() []string {
	ids := make([]string, 0, len(r.resolvers))
	for id := range r.resolvers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateChoice - публичная операция для игрового кода (обычно из AfterEvents
// игровой системы): ставит дескриптор в брокер. Если ничего не висит,
// интеракция активируется немедленно, иначе встает в FIFO.
func CreateChoice[C any](st *engine.MatchState[C], d engine.InteractionDescriptor) {
	st.Sys.Interaction.Enqueue(d)
}

// InteractionSystem - брокер единственного активного выбора.
// Пока интеракция висит, конвейер пропускает только команду-ответ,
// отмену и явно разрешенные команды-эскейпы.
type InteractionSystem[C any] struct {
	engine.Base[C]
	registry *Registry[C]
	escape   map[engine.CommandType]bool
}

// NewInteraction создает брокер. escape - дополнительные команды,
// разрешенные при подвешенной интеракции (например, CHEAT в тестах).
func NewInteraction[C any](reg *Registry[C], escape ...engine.CommandType) *InteractionSystem[C] {
	s := &InteractionSystem[C]{
		registry: reg,
		escape:   make(map[engine.CommandType]bool, len(escape)),
	}
	for _, t := range escape {
		s.escape[t] = true
	}
	return s
}

func (s *InteractionSystem[C]) ID() string { return "interaction" }

func (s *InteractionSystem[C]) CommandTypes() []engine.CommandType {
	return []engine.CommandType{CommandResolveChoice, CommandCancelChoice}
}

// CommandAllowed - ворота: при активной интеракции проходят только
// ответ, отмена и команды-эскейпы.
func (s *InteractionSystem[C]) CommandAllowed(st *engine.MatchState[C], cmd engine.Command) bool {
	if st.Sys.Interaction.Current == nil {
		return true
	}
	switch cmd.Type {
	case CommandResolveChoice, CommandCancelChoice:
		return true
	}
	return s.escape[cmd.Type]
}

func (s *InteractionSystem[C]) HandleCommand(st *engine.MatchState[C], cmd engine.Command, _ random.Source) (bool, []engine.Event, error) {
	switch cmd.Type {
	case CommandResolveChoice:
		events, err := s.resolve(st, cmd)
		return true, events, err
	case CommandCancelChoice:
		events, err := s.cancel(st, cmd)
		return true, events, err
	}
	return false, nil, nil
}

func (s *InteractionSystem[C]) resolve(st *engine.MatchState[C], cmd engine.Command) ([]engine.Event, error) {
	cur := st.Sys.Interaction.Current
	if cur == nil {
		return nil, errors.New("no_active_interaction")
	}
	if cur.PlayerID != cmd.PlayerID {
		return nil, errors.New("not_your_choice")
	}

	var payload ResolvePayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			return nil, fmt.Errorf("malformed_choice: %w", err)
		}
	}

	resolver, ok := s.registry.Lookup(cur.SourceID)
	if !ok {
		// Ошибка программиста: аудит обязан ловить это до рантайма.
		// Команда фатально отклоняется, интеракция остается висеть.
		return nil, fmt.Errorf("unregistered_resolver:%s", cur.SourceID)
	}

	res, err := resolver.Resolve(st, *cur, payload.Choice, cmd.Timestamp)
	if err != nil {
		// Ошибка резолюции (протухший вариант и т.п.):
		// отказ, текущая интеракция не меняется.
		return nil, err
	}

	resolved := engine.NewEvent(EventChoiceResolved, ChoiceResolvedPayload{
		ID:       cur.ID,
		Kind:     cur.Kind,
		SourceID: cur.SourceID,
		PlayerID: cur.PlayerID,
		Choice:   payload.Choice,
		NextKind: nextKind(res.Next),
	}, cmd.Timestamp, cmd.Type)

	if res.Next != nil {
		// Продолжение цепочки: следующий шаг замещает текущий,
		// очередь не трогаем. SourceID наследуется, если не задан.
		next := *res.Next
		if next.SourceID == "" {
			next.SourceID = cur.SourceID
		}
		if next.ID == "" {
			next.ID = cur.ID
		}
		st.Sys.Interaction.Current = &next
	} else {
		st.Sys.Interaction.Resolve()
	}

	return append([]engine.Event{resolved}, res.Events...), nil
}

func (s *InteractionSystem[C]) cancel(st *engine.MatchState[C], cmd engine.Command) ([]engine.Event, error) {
	cur := st.Sys.Interaction.Current
	if cur == nil {
		return nil, errors.New("no_active_interaction")
	}
	if cur.PlayerID != cmd.PlayerID {
		return nil, errors.New("not_your_choice")
	}

	cancelled := engine.NewEvent(EventChoiceCancelled, ChoiceCancelledPayload{
		ID:       cur.ID,
		Kind:     cur.Kind,
		SourceID: cur.SourceID,
		PlayerID: cur.PlayerID,
	}, cmd.Timestamp, cmd.Type)

	st.Sys.Interaction.Resolve()
	return []engine.Event{cancelled}, nil
}

// AfterEvents держит Halt, пока интеракция активна, чтобы контроллер фаз
// не продвинул матч поверх ожидающего решения.
func (s *InteractionSystem[C]) AfterEvents(st *engine.MatchState[C], _ []engine.Event) (engine.HookResult, error) {
	return engine.HookResult{Halt: st.Sys.Interaction.Current != nil}, nil
}

func nextKind(d *engine.InteractionDescriptor) string {
	if d == nil {
		return ""
	}
	return d.Kind
}
