package engine

import "boardgame-server/pkg/random"

// HookResult - то, что система возвращает из AfterEvents.
// Events дозаписываются в конвейер (редуцируются и показываются системам
// следующим раундом каскада). Halt останавливает авто-продвижение фаз.
type HookResult struct {
	Events []Event
	Halt   bool
}

// System - middleware конвейера. Системы выполняются в порядке регистрации,
// порядок значим: например, брокер интеракций должен отработать до
// контроллера фаз, чтобы авто-продвижение видело подвешенное состояние.
type System[C any] interface {
	// ID - стабильный идентификатор системы для логов и отладки.
	ID() string

	// CommandTypes - команды уровня ядра, которые система обрабатывает сама
	// (минуя Domain). Входит в закрытый набор команд конвейера.
	CommandTypes() []CommandType

	// CommandAllowed - ворота на время подвешенного состояния. Пока система
	// держит матч (интеракция, окно ответов), она пропускает только свой
	// allow-list. Команда должна пройти ворота ВСЕХ систем.
	CommandAllowed(st *MatchState[C], cmd Command) bool

	// BeforeCommand может наложить вето до каких-либо изменений состояния.
	BeforeCommand(st *MatchState[C], cmd Command) error

	// HandleCommand дает системе шанс полностью обработать команду.
	// handled=false означает "не моя команда, передать дальше".
	HandleCommand(st *MatchState[C], cmd Command, rnd random.Source) (handled bool, events []Event, err error)

	// AfterEvents вызывается для каждой партии событий. Система может
	// дописать события, изменить свой срез SystemState или поднять Halt.
	AfterEvents(st *MatchState[C], batch []Event) (HookResult, error)
}

// AutoAdvancer - необязательное расширение System. Конвейер опрашивает его
// после каждой команды, если ни одна система не подняла Halt.
type AutoAdvancer[C any] interface {
	// AutoAdvance делает один автоматический шаг (переход фазы).
	// advanced=false означает "продвигать нечего".
	AutoAdvance(st *MatchState[C]) (events []Event, advanced bool)
}

// StateInitializer - необязательное расширение System: инициализация
// своего среза SystemState при создании матча.
type StateInitializer[C any] interface {
	InitState(st *MatchState[C])
}

// Base - no-op реализация System для встраивания.
// Конкретные системы переопределяют только нужные хуки.
type Base[C any] struct{}

func (Base[C]) CommandTypes() []CommandType { return nil }

func (Base[C]) CommandAllowed(*MatchState[C], Command) bool { return true }

func (Base[C]) BeforeCommand(*MatchState[C], Command) error { return nil }

func (Base[C]) HandleCommand(*MatchState[C], Command, random.Source) (bool, []Event, error) {
	return false, nil, nil
}

func (Base[C]) AfterEvents(*MatchState[C], []Event) (HookResult, error) {
	return HookResult{}, nil
}
