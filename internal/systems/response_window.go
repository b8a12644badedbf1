package systems

import (
	"errors"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

// Команды и события контроллера окон ответов.
const (
	CommandPassResponse engine.CommandType = "PASS_RESPONSE"

	EventWindowOpened engine.EventType = "SYS_WINDOW_OPENED"
	EventWindowClosed engine.EventType = "SYS_WINDOW_CLOSED"
)

// WindowPayload - payload событий открытия/закрытия окна.
type WindowPayload struct {
	WindowType          string            `json:"windowType"`
	TriggeringEventType engine.EventType  `json:"triggeringEventType"`
	EligiblePlayerIDs   []engine.PlayerID `json:"eligiblePlayerIds,omitempty"`
}

// WindowTrigger - пара (тип события, тип окна): появление события
// в партии AfterEvents открывает окно данного типа.
type WindowTrigger struct {
	EventType  engine.EventType
	WindowType string
}

// ResponseWindowConfig - конфигурация контроллера окон ответов.
type ResponseWindowConfig[C any] struct {
	Triggers []WindowTrigger

	// Players - полный список игроков матча (кандидаты в участники окна).
	Players []engine.PlayerID

	// AllowedCommands - доменные команды-ответы, разрешенные при
	// открытом окне (сыграть карту-ответ и т.п.).
	AllowedCommands []engine.CommandType

	// HasRespondableContent - игровой предикат: есть ли игроку чем ответить.
	// Игроки без контента авто-пасуют без round-trip. nil - участвуют все.
	HasRespondableContent func(st *engine.MatchState[C], p engine.PlayerID, windowType string) bool
}

// ResponseWindowSystem открывает окно после означенных событий и держит
// конвейер, пока все участники не спасуют в одном раунде пасов.
// Любое новое триггерное событие сбрасывает пасы: каждый получает
// возможность отреагировать на новую информацию.
type ResponseWindowSystem[C any] struct {
	engine.Base[C]
	cfg     ResponseWindowConfig[C]
	allowed map[engine.CommandType]bool
}

func NewResponseWindow[C any](cfg ResponseWindowConfig[C]) *ResponseWindowSystem[C] {
	s := &ResponseWindowSystem[C]{
		cfg:     cfg,
		allowed: make(map[engine.CommandType]bool, len(cfg.AllowedCommands)),
	}
	for _, t := range cfg.AllowedCommands {
		s.allowed[t] = true
	}
	return s
}

func (s *ResponseWindowSystem[C]) ID() string { return "response-window" }

func (s *ResponseWindowSystem[C]) CommandTypes() []engine.CommandType {
	return []engine.CommandType{CommandPassResponse}
}

// CommandAllowed: при открытом окне проходят только пас и команды-ответы.
// Активная интеракция главнее окна: пока она висит, ее команды проходят
// сквозь ворота окна, иначе карта-ответ, породившая выбор, заклинила бы
// матч навсегда (ответ режет ворота окна, пас - ворота интеракции).
func (s *ResponseWindowSystem[C]) CommandAllowed(st *engine.MatchState[C], cmd engine.Command) bool {
	if st.Sys.ResponseWindow.Active == nil {
		return true
	}
	if st.Sys.Interaction.Current != nil {
		switch cmd.Type {
		case CommandResolveChoice, CommandCancelChoice:
			return true
		}
	}
	if cmd.Type == CommandPassResponse {
		return true
	}
	return s.allowed[cmd.Type]
}

func (s *ResponseWindowSystem[C]) HandleCommand(st *engine.MatchState[C], cmd engine.Command, _ random.Source) (bool, []engine.Event, error) {
	if cmd.Type != CommandPassResponse {
		return false, nil, nil
	}
	win := st.Sys.ResponseWindow.Active
	if win == nil {
		return true, nil, errors.New("no_active_window")
	}
	if !win.IsEligible(cmd.PlayerID) {
		return true, nil, errors.New("not_eligible")
	}
	if win.HasPassed(cmd.PlayerID) {
		return true, nil, errors.New("already_passed")
	}

	win.PassedPlayerIDs = append(win.PassedPlayerIDs, cmd.PlayerID)

	var events []engine.Event
	if win.AllPassed() {
		events = append(events, s.close(st, cmd.Timestamp)...)
	}
	return true, events, nil
}

// AfterEvents: открывает окна по триггерам и сбрасывает пасы, когда
// ответ произвел новое триггерное событие ("everyone gets a last look").
func (s *ResponseWindowSystem[C]) AfterEvents(st *engine.MatchState[C], batch []engine.Event) (engine.HookResult, error) {
	var emitted []engine.Event

	for _, ev := range batch {
		for _, trig := range s.cfg.Triggers {
			if ev.Type != trig.EventType {
				continue
			}
			win := st.Sys.ResponseWindow.Active
			switch {
			case win != nil && win.WindowType == trig.WindowType:
				// Новое триггерное событие в открытом окне:
				// раунд пасов начинается заново для всех.
				win.PassedPlayerIDs = nil
				win.EligiblePlayerIDs = s.eligible(st, trig.WindowType)
			case win != nil:
				// Другое окно уже активно - новое ждет в очереди.
				st.Sys.ResponseWindow.Queue = append(st.Sys.ResponseWindow.Queue, engine.WindowDescriptor{
					WindowType:          trig.WindowType,
					TriggeringEventType: trig.EventType,
				})
			default:
				emitted = append(emitted, s.open(st, trig, ev.Timestamp)...)
			}
		}
	}

	// Переоценка авто-пасов: событие могло лишить игрока контента для ответа.
	if win := st.Sys.ResponseWindow.Active; win != nil && s.cfg.HasRespondableContent != nil {
		for _, p := range win.EligiblePlayerIDs {
			if !win.HasPassed(p) && !s.cfg.HasRespondableContent(st, p, win.WindowType) {
				win.PassedPlayerIDs = append(win.PassedPlayerIDs, p)
			}
		}
		if win.AllPassed() {
			ts := int64(0)
			if len(batch) > 0 {
				ts = batch[len(batch)-1].Timestamp
			}
			emitted = append(emitted, s.close(st, ts)...)
		}
	}

	return engine.HookResult{
		Events: emitted,
		Halt:   st.Sys.ResponseWindow.Active != nil,
	}, nil
}

// open открывает окно, если хоть кому-то есть чем ответить.
// Без участников окно авто-скипается: сразу эмитится событие закрытия,
// чтобы последствия окна (отложенный урон и т.п.) все равно применились.
func (s *ResponseWindowSystem[C]) open(st *engine.MatchState[C], trig WindowTrigger, ts int64) []engine.Event {
	eligible := s.eligible(st, trig.WindowType)
	if len(eligible) == 0 {
		return []engine.Event{engine.NewEvent(EventWindowClosed, WindowPayload{
			WindowType:          trig.WindowType,
			TriggeringEventType: trig.EventType,
		}, ts, "")}
	}
	st.Sys.ResponseWindow.Active = &engine.WindowDescriptor{
		WindowType:          trig.WindowType,
		TriggeringEventType: trig.EventType,
		EligiblePlayerIDs:   eligible,
	}
	return []engine.Event{engine.NewEvent(EventWindowOpened, WindowPayload{
		WindowType:          trig.WindowType,
		TriggeringEventType: trig.EventType,
		EligiblePlayerIDs:   eligible,
	}, ts, "")}
}

// close закрывает активное окно и поднимает следующее из очереди.
func (s *ResponseWindowSystem[C]) close(st *engine.MatchState[C], ts int64) []engine.Event {
	win := st.Sys.ResponseWindow.Active
	st.Sys.ResponseWindow.Active = nil

	events := []engine.Event{engine.NewEvent(EventWindowClosed, WindowPayload{
		WindowType:          win.WindowType,
		TriggeringEventType: win.TriggeringEventType,
	}, ts, "")}

	for len(st.Sys.ResponseWindow.Queue) > 0 {
		next := st.Sys.ResponseWindow.Queue[0]
		st.Sys.ResponseWindow.Queue = st.Sys.ResponseWindow.Queue[1:]
		events = append(events, s.open(st, WindowTrigger{
			EventType:  next.TriggeringEventType,
			WindowType: next.WindowType,
		}, ts)...)
		if st.Sys.ResponseWindow.Active != nil {
			break // следующее окно открылось, остальные продолжают ждать
		}
		// Участников не нашлось - окно схлопнулось, пробуем следующее.
	}
	return events
}

// eligible возвращает участников окна в порядке списка игроков матча
// (детерминизм: никакой итерации по map).
func (s *ResponseWindowSystem[C]) eligible(st *engine.MatchState[C], windowType string) []engine.PlayerID {
	if s.cfg.HasRespondableContent == nil {
		return append([]engine.PlayerID(nil), s.cfg.Players...)
	}
	var out []engine.PlayerID
	for _, p := range s.cfg.Players {
		if s.cfg.HasRespondableContent(st, p, windowType) {
			out = append(out, p)
		}
	}
	return out
}
