// Package testkit - детерминированный прогон матчей в тестах:
// раннер поверх боевого конвейера, инъекция состояния и статический
// аудит полноты резолверов интеракций.
package testkit

import (
	"encoding/json"
	"fmt"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

// Config - конфигурация тестового раннера.
type Config[C any] struct {
	Domain  engine.Domain[C]
	Systems []engine.System[C]
	Players []engine.PlayerID

	// Random - источник случайности. nil - Seeded(Seed).
	Random random.Source
	Seed   int64

	// DieSides - число граней кубика для скриптования бросков (0 - 6).
	DieSides int

	// Lenient отключает панику на незарегистрированных командах.
	// По умолчанию раннер строгий: опечатка в типе команды должна
	// ронять тест, а не тихо превращаться в отказ.
	Lenient bool
}

// Runner гоняет команды через тот же конвейер, что и боевой матч.
// Никаких тестовых коротких путей: отличие от продакшена - только
// скриптуемая случайность и синтетические таймстемпы.
type Runner[C any] struct {
	pipeline *engine.Pipeline[C]
	state    *engine.MatchState[C]
	queue    *random.Queue
	dice     *random.Dice
	clock    int64
}

// NewRunner собирает раннер и создает матч. Конвейер получает очередь
// подставных значений: тест скриптует грани кубиков через Dice, а
// незаскриптованные обращения уходят в сидированный источник.
func NewRunner[C any](cfg Config[C]) (*Runner[C], error) {
	src := cfg.Random
	if src == nil {
		src = random.NewSeeded(cfg.Seed)
	}
	queue := random.NewQueue(src)
	dice := random.NewDice(queue, cfg.DieSides)

	p := engine.NewPipeline(cfg.Domain, cfg.Systems, cfg.Players, queue)
	p.Strict = !cfg.Lenient

	st, err := p.NewMatch()
	if err != nil {
		return nil, fmt.Errorf("testkit: new match: %w", err)
	}
	return &Runner[C]{pipeline: p, state: st, queue: queue, dice: dice}, nil
}

// State - текущее состояние матча. Читать можно свободно; писать -
// только через Harness, чтобы инъекции оставались явными.
func (r *Runner[C]) State() *engine.MatchState[C] { return r.state }

// Dice - скриптуемый источник граней для следующих бросков.
func (r *Runner[C]) Dice() *random.Dice { return r.dice }

// Queue - прямой доступ к очереди подставных float-значений
// (для скриптования не-кубиковой случайности).
func (r *Runner[C]) Queue() *random.Queue { return r.queue }

// Dispatch отправляет команду от имени игрока. payload сериализуется
// в JSON; nil - команда без payload. Таймстемпы синтетические и строго
// растут: реплей прогона побайтово воспроизводим.
func (r *Runner[C]) Dispatch(player engine.PlayerID, t engine.CommandType, payload any) engine.Result[C] {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic(fmt.Sprintf("testkit: marshal payload for %s: %v", t, err))
		}
		raw = b
	}
	r.clock++
	return r.pipeline.Execute(r.state, engine.Command{
		Type:      t,
		PlayerID:  player,
		Payload:   raw,
		Timestamp: r.clock,
	})
}

// MustDispatch - Dispatch, падающий паникой на отказе. Для шагов
// подготовки, чей успех не является предметом теста.
func (r *Runner[C]) MustDispatch(player engine.PlayerID, t engine.CommandType, payload any) engine.Result[C] {
	res := r.Dispatch(player, t, payload)
	if !res.Success {
		panic(fmt.Sprintf("testkit: %s by %s rejected: %s", t, player, res.Error))
	}
	return res
}

// Step - один шаг сценарного теста.
type Step struct {
	Player  engine.PlayerID
	Command engine.CommandType
	Payload any

	// WantError - ожидаемая причина отказа. Пустая строка - шаг обязан
	// пройти успешно.
	WantError string
}

// Case - сценарный тест: последовательность шагов с ожиданиями.
type Case struct {
	Name  string
	Steps []Step
}

// StepResult - фактический результат шага вместе с его описанием.
type StepResult[C any] struct {
	Step   Step
	Result engine.Result[C]
}

// Run прогоняет сценарий. Первый шаг, чей исход разошелся с ожиданием,
// завершает прогон ошибкой с номером шага.
func (r *Runner[C]) Run(c Case) ([]StepResult[C], error) {
	results := make([]StepResult[C], 0, len(c.Steps))
	for i, step := range c.Steps {
		res := r.Dispatch(step.Player, step.Command, step.Payload)
		results = append(results, StepResult[C]{Step: step, Result: res})

		switch {
		case step.WantError == "" && !res.Success:
			return results, fmt.Errorf("%s: step %d (%s by %s): unexpected rejection: %s",
				c.Name, i, step.Command, step.Player, res.Error)
		case step.WantError != "" && res.Success:
			return results, fmt.Errorf("%s: step %d (%s by %s): expected error %q, got success",
				c.Name, i, step.Command, step.Player, step.WantError)
		case step.WantError != "" && res.Error != step.WantError:
			return results, fmt.Errorf("%s: step %d (%s by %s): expected error %q, got %q",
				c.Name, i, step.Command, step.Player, step.WantError, res.Error)
		}
	}
	return results, nil
}

// EventTypes - типы событий журнала начиная с cursor. Удобно для
// ассертов на последовательность событий.
func (r *Runner[C]) EventTypes(cursor int) []engine.EventType {
	recs := r.state.Sys.EventLog.EntriesSince(cursor)
	out := make([]engine.EventType, len(recs))
	for i, rec := range recs {
		out[i] = rec.Event.Type
	}
	return out
}
