package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"boardgame-server/pkg/logger"
	"boardgame-server/pkg/random"
)

// MaxCascadeRounds - предохранитель от бесконечного каскада событий
// (система, чей ответ вечно порождает новые события). При срабатывании
// команда завершается ошибкой, состояние остается частично примененным.
const MaxCascadeRounds = 100

// Машиночитаемые причины отказа. Уходят клиенту как есть.
const (
	ErrUnknownCommand    = "unknown_command"
	ErrCommandNotAllowed = "command_not_allowed"
	ErrCascadeOverflow   = "event_cascade_overflow"
)

// Result - тегированный результат обработки одной команды.
// Конвейер не паникует через границу ядра: единственное исключение -
// незарегистрированный тип команды в Strict-режиме (ошибка программиста).
type Result[C any] struct {
	Success bool
	State   *MatchState[C]
	Events  []Event
	Halted  bool
	Error   string
}

// Pipeline прогоняет команды через Domain и зарегистрированные системы.
// Один Pipeline обслуживает один матч; внутри матча команды строго
// последовательны, конкурентность существует только между матчами.
type Pipeline[C any] struct {
	Domain  Domain[C]
	Systems []System[C]
	Players []PlayerID
	Random  random.Source

	// Strict переводит ошибки программиста (незарегистрированная команда)
	// в панику. Включается тест-раннером; в продакшене команда просто
	// отклоняется и логируется.
	Strict bool

	commands map[CommandType]bool
	log      *logrus.Entry
}

// NewPipeline собирает конвейер и строит закрытый набор команд:
// команды Domain плюс команды уровня ядра от каждой системы.
func NewPipeline[C any](domain Domain[C], systems []System[C], players []PlayerID, rnd random.Source) *Pipeline[C] {
	p := &Pipeline[C]{
		Domain:   domain,
		Systems:  systems,
		Players:  players,
		Random:   rnd,
		commands: make(map[CommandType]bool),
	}
	for _, t := range domain.CommandTypes() {
		p.commands[t] = true
	}
	for _, sys := range systems {
		for _, t := range sys.CommandTypes() {
			p.commands[t] = true
		}
	}
	return p
}

// WithLogger привязывает контекстный логгер (обычно с match_id).
func (p *Pipeline[C]) WithLogger(entry *logrus.Entry) *Pipeline[C] {
	p.log = entry
	return p
}

func (p *Pipeline[C]) logger() *logrus.Entry {
	if p.log != nil {
		return p.log
	}
	if logger.Log == nil {
		logger.Init()
	}
	return logrus.NewEntry(logger.Log)
}

// NewMatch создает начальное состояние: Setup домена плюс InitState систем.
func (p *Pipeline[C]) NewMatch() (*MatchState[C], error) {
	core, err := p.Domain.Setup(p.Players, p.Random)
	if err != nil {
		return nil, fmt.Errorf("domain setup: %w", err)
	}
	st := &MatchState[C]{Core: core}
	for _, sys := range p.Systems {
		if init, ok := sys.(StateInitializer[C]); ok {
			init.InitState(st)
		}
	}
	return st, nil
}

// Execute обрабатывает одну команду целиком:
// ворота -> вето -> validate -> execute -> reduce -> afterEvents -> авто-фазы.
// До первого события состояние не меняется; после - частичное применение
// намеренно (события суть уже совершившиеся факты).
func (p *Pipeline[C]) Execute(st *MatchState[C], cmd Command) Result[C] {
	// 1. Закрытый набор команд.
	if !p.commands[cmd.Type] {
		if p.Strict {
			panic(fmt.Sprintf("engine: unregistered command type %q", cmd.Type))
		}
		p.logger().WithField("command", cmd.Type).Error("Unregistered command type")
		return p.reject(st, ErrUnknownCommand)
	}

	// 2. Ворота подвешенного состояния: пока висит интеракция или окно
	// ответов, проходят только allow-listed команды.
	for _, sys := range p.Systems {
		if !sys.CommandAllowed(st, cmd) {
			return p.reject(st, ErrCommandNotAllowed)
		}
	}

	// 3. Вето систем (например, чужой ход).
	for _, sys := range p.Systems {
		if err := sys.BeforeCommand(st, cmd); err != nil {
			return p.reject(st, err.Error())
		}
	}

	// 4. Команда уровня ядра? Первая система, взявшая команду, закрывает ее.
	var events []Event
	handled := false
	for _, sys := range p.Systems {
		ok, evs, err := sys.HandleCommand(st, cmd, p.Random)
		if err != nil {
			return p.reject(st, err.Error())
		}
		if ok {
			events = evs
			handled = true
			break
		}
	}

	// 5. Доменная команда: validate отклоняет без побочных эффектов.
	if !handled {
		if err := p.Domain.Validate(st, cmd); err != nil {
			return p.reject(st, err.Error())
		}
		evs, err := p.Domain.Execute(st, cmd, p.Random)
		if err != nil {
			return p.reject(st, err.Error())
		}
		events = evs
	}

	// Дальше состояние мутирует: события считаются фактами.
	var all []Event
	halt, err := p.applyBatch(st, events, &all)
	if err != nil {
		// Частичное применение намеренно: бухгалтерию ранних систем
		// нельзя откатить, события уже легли в журнал.
		return Result[C]{Success: false, State: st, Events: all, Halted: true, Error: err.Error()}
	}

	// 6. Авто-продвижение фаз, пока никто не держит матч.
	if !halt && !st.Sys.Suspended() {
		if err := p.autoAdvance(st, &all); err != nil {
			return Result[C]{Success: false, State: st, Events: all, Halted: true, Error: err.Error()}
		}
	}

	return Result[C]{
		Success: true,
		State:   st,
		Events:  all,
		Halted:  halt || st.Sys.Suspended(),
	}
}

func (p *Pipeline[C]) reject(st *MatchState[C], reason string) Result[C] {
	return Result[C]{Success: false, State: st, Error: reason}
}

// applyBatch редуцирует партию событий и гоняет каскад AfterEvents:
// события, дописанные системами, редуцируются и предъявляются всем
// системам следующим раундом, пока каскад не затихнет.
func (p *Pipeline[C]) applyBatch(st *MatchState[C], batch []Event, all *[]Event) (halted bool, err error) {
	pending := batch
	for round := 0; len(pending) > 0; round++ {
		if round >= MaxCascadeRounds {
			p.logger().Warn("Event cascade did not converge, breaking")
			return true, errors.New(ErrCascadeOverflow)
		}

		if err := p.reduceAll(st, pending); err != nil {
			return true, err
		}
		*all = append(*all, pending...)

		var emitted []Event
		for _, sys := range p.Systems {
			res, err := sys.AfterEvents(st, pending)
			if err != nil {
				return true, fmt.Errorf("system %s: %w", sys.ID(), err)
			}
			emitted = append(emitted, res.Events...)
			if res.Halt {
				halted = true
			}
		}
		pending = emitted
	}
	return halted, nil
}

// reduceAll сворачивает события в Core в порядке эмиссии
// и дописывает их в журнал матча.
func (p *Pipeline[C]) reduceAll(st *MatchState[C], events []Event) error {
	for _, ev := range events {
		core, err := p.Domain.Reduce(st.Core, ev)
		if err != nil {
			return fmt.Errorf("reduce %s: %w", ev.Type, err)
		}
		st.Core = core
		st.Sys.EventLog.Append(ev)
	}
	return nil
}

// autoAdvance крутит автоматические переходы фаз до первой неавтоматической
// фазы, остановки или подвешенного состояния.
func (p *Pipeline[C]) autoAdvance(st *MatchState[C], all *[]Event) error {
	for round := 0; round < MaxCascadeRounds; round++ {
		stepped := false
		for _, sys := range p.Systems {
			adv, ok := sys.(AutoAdvancer[C])
			if !ok {
				continue
			}
			events, advanced := adv.AutoAdvance(st)
			if !advanced {
				continue
			}
			stepped = true
			halted, err := p.applyBatch(st, events, all)
			if err != nil {
				return err
			}
			if halted || st.Sys.Suspended() {
				return nil
			}
		}
		if !stepped {
			return nil
		}
	}
	p.logger().Warn("Auto-advance did not converge, breaking")
	return errors.New(ErrCascadeOverflow)
}
