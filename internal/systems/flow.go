// Package systems содержит game-независимые системы конвейера:
// контроллер фаз, брокер интеракций, окна ответов, обучение и чит-канал.
// Каждая система владеет только своим срезом engine.SystemState.
package systems

import (
	"errors"
	"fmt"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

// Команды и события контроллера фаз.
const (
	CommandAdvancePhase engine.CommandType = "ADVANCE_PHASE"

	EventPhaseEntered engine.EventType = "SYS_PHASE_ENTERED"
	EventGameOver     engine.EventType = "SYS_GAME_OVER"
)

// PhaseEnteredPayload - payload события EventPhaseEntered.
type PhaseEnteredPayload struct {
	Phase    string          `json:"phase"`
	Previous string          `json:"previous,omitempty"`
	OwnerID  engine.PlayerID `json:"ownerId,omitempty"`
}

// GameOverPayload - payload события EventGameOver.
type GameOverPayload struct {
	WinnerIDs []engine.PlayerID `json:"winnerIds,omitempty"`
	Reason    string            `json:"reason"`
}

// PhaseDef описывает одну фазу в упорядоченном списке игры.
type PhaseDef[C any] struct {
	Name string

	// Auto: фаза завершается сама, как только в нее вошли
	// (если матч не подвешен). Иначе выход - командой ADVANCE_PHASE.
	Auto bool

	// Terminal: вход в фазу завершает матч.
	Terminal bool

	// Owner возвращает игрока, которому принадлежит ход в этой фазе.
	// nil - фаза ничья, команды шлет кто угодно.
	Owner func(st *engine.MatchState[C]) engine.PlayerID

	// OnEnter возвращает события входа в фазу (раздача, сброс счетчиков).
	// ts - таймстемп команды, вызвавшей переход.
	OnEnter func(st *engine.MatchState[C], ts int64) []engine.Event

	// Winners вычисляет победителей при входе в терминальную фазу.
	Winners func(st *engine.MatchState[C]) []engine.PlayerID
}

// FlowConfig - конфигурация контроллера фаз.
type FlowConfig[C any] struct {
	Phases []PhaseDef[C]

	// OwnerExempt - доменные команды, которые разрешено слать не в свой ход
	// (карты-ответы, пасы). Команды уровня ядра освобождены всегда.
	OwnerExempt []engine.CommandType
}

// FlowSystem - машина состояний фаз: упорядоченный список, авто-переходы,
// владение ходом. Переход legal только когда матч не подвешен.
type FlowSystem[C any] struct {
	engine.Base[C]
	cfg    FlowConfig[C]
	index  map[string]int
	exempt map[engine.CommandType]bool
}

// NewFlow создает контроллер фаз. Пустой список фаз - ошибка программиста.
func NewFlow[C any](cfg FlowConfig[C]) *FlowSystem[C] {
	if len(cfg.Phases) == 0 {
		panic("systems: flow requires at least one phase")
	}
	f := &FlowSystem[C]{
		cfg:    cfg,
		index:  make(map[string]int, len(cfg.Phases)),
		exempt: make(map[engine.CommandType]bool, len(cfg.OwnerExempt)),
	}
	for i, ph := range cfg.Phases {
		if _, dup := f.index[ph.Name]; dup {
			panic("systems: duplicate phase " + ph.Name)
		}
		f.index[ph.Name] = i
	}
	for _, t := range cfg.OwnerExempt {
		f.exempt[t] = true
	}
	return f
}

func (f *FlowSystem[C]) ID() string { return "flow" }

func (f *FlowSystem[C]) CommandTypes() []engine.CommandType {
	return []engine.CommandType{CommandAdvancePhase}
}

// InitState ставит матч в первую фазу списка.
func (f *FlowSystem[C]) InitState(st *engine.MatchState[C]) {
	st.Sys.Phase = f.cfg.Phases[0].Name
}

// BeforeCommand - проверка владения ходом для доменных команд
// и отсечка всего, кроме команд ядра, после конца матча.
func (f *FlowSystem[C]) BeforeCommand(st *engine.MatchState[C], cmd engine.Command) error {
	if f.isKernelCommand(cmd.Type) {
		return nil
	}
	if st.Sys.GameOver != nil {
		return errors.New("match_is_over")
	}
	if f.exempt[cmd.Type] || cmd.Type == CommandAdvancePhase {
		return nil
	}
	ph := f.current(st)
	if ph.Owner == nil {
		return nil
	}
	if owner := ph.Owner(st); owner != "" && owner != cmd.PlayerID {
		return errors.New("not_your_turn")
	}
	return nil
}

// isKernelCommand: команды с префиксом других систем флоу не трогает.
// Их пропуск или блокировка - дело самих систем (ворота CommandAllowed).
func (f *FlowSystem[C]) isKernelCommand(t engine.CommandType) bool {
	switch t {
	case CommandResolveChoice, CommandCancelChoice, CommandPassResponse, CommandCheat:
		return true
	}
	return false
}

func (f *FlowSystem[C]) HandleCommand(st *engine.MatchState[C], cmd engine.Command, _ random.Source) (bool, []engine.Event, error) {
	if cmd.Type != CommandAdvancePhase {
		return false, nil, nil
	}
	ph := f.current(st)
	if ph.Terminal {
		return true, nil, errors.New("match_is_over")
	}
	// Выход из фазы руками доступен только владельцу хода.
	if ph.Owner != nil {
		if owner := ph.Owner(st); owner != "" && owner != cmd.PlayerID {
			return true, nil, errors.New("not_your_turn")
		}
	}
	events, err := f.advance(st, cmd.Timestamp)
	return true, events, err
}

// AutoAdvance делает один шаг, если текущая фаза автоматическая.
// Конвейер вызывает это в цикле, поэтому цепочка авто-фаз
// проигрывается до первой интерактивной.
func (f *FlowSystem[C]) AutoAdvance(st *engine.MatchState[C]) ([]engine.Event, bool) {
	if st.Sys.Suspended() {
		return nil, false
	}
	ph := f.current(st)
	if !ph.Auto || ph.Terminal {
		return nil, false
	}
	// Таймстемп наследуется от последнего события журнала:
	// авто-переход не имеет собственной команды.
	ts := int64(0)
	if n := len(st.Sys.EventLog.Entries); n > 0 {
		ts = st.Sys.EventLog.Entries[n-1].Event.Timestamp
	}
	events, err := f.advance(st, ts)
	if err != nil {
		return nil, false
	}
	return events, true
}

// advance переводит матч в следующую фазу (по кругу) и собирает события входа.
func (f *FlowSystem[C]) advance(st *engine.MatchState[C], ts int64) ([]engine.Event, error) {
	cur, ok := f.index[st.Sys.Phase]
	if !ok {
		return nil, fmt.Errorf("unknown_phase:%s", st.Sys.Phase)
	}
	next := f.cfg.Phases[(cur+1)%len(f.cfg.Phases)]
	return f.enter(st, next, st.Sys.Phase, ts)
}

func (f *FlowSystem[C]) enter(st *engine.MatchState[C], ph PhaseDef[C], prev string, ts int64) ([]engine.Event, error) {
	st.Sys.Phase = ph.Name

	var owner engine.PlayerID
	if ph.Owner != nil {
		owner = ph.Owner(st)
	}
	events := []engine.Event{engine.NewEvent(EventPhaseEntered, PhaseEnteredPayload{
		Phase:    ph.Name,
		Previous: prev,
		OwnerID:  owner,
	}, ts, CommandAdvancePhase)}

	if ph.OnEnter != nil {
		events = append(events, ph.OnEnter(st, ts)...)
	}

	if ph.Terminal {
		var winners []engine.PlayerID
		if ph.Winners != nil {
			winners = ph.Winners(st)
		}
		st.Sys.GameOver = &engine.GameOverState{
			WinnerIDs: winners,
			Reason:    "terminal_phase:" + ph.Name,
		}
		events = append(events, engine.NewEvent(EventGameOver, GameOverPayload{
			WinnerIDs: winners,
			Reason:    st.Sys.GameOver.Reason,
		}, ts, CommandAdvancePhase))
	}
	return events, nil
}

func (f *FlowSystem[C]) current(st *engine.MatchState[C]) PhaseDef[C] {
	if i, ok := f.index[st.Sys.Phase]; ok {
		return f.cfg.Phases[i]
	}
	return f.cfg.Phases[0]
}
