package systems

import (
	"fmt"

	"boardgame-server/internal/engine"
)

// EventTutorialAdvanced эмитится при завершении шага обучения.
const EventTutorialAdvanced engine.EventType = "SYS_TUTORIAL_ADVANCED"

// TutorialAdvancedPayload - payload события EventTutorialAdvanced.
type TutorialAdvancedPayload struct {
	StepID   string `json:"stepId"`
	NextStep string `json:"nextStep,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// TutorialStep - один шаг заскриптованного сценария обучения.
type TutorialStep struct {
	ID string
	// Command - команда, которую сценарий ожидает от игрока на этом шаге.
	Command engine.CommandType
	// Hint - подсказка для UI (ключ локализации).
	Hint string
}

// TutorialSystem - директор обучения: ведет игрока по фиксированной
// последовательности шагов, отклоняя доменные команды не по сценарию.
// Вспомогательная система, для обычных матчей не регистрируется.
type TutorialSystem[C any] struct {
	engine.Base[C]
	steps []TutorialStep
}

func NewTutorial[C any](steps []TutorialStep) *TutorialSystem[C] {
	return &TutorialSystem[C]{steps: steps}
}

func (t *TutorialSystem[C]) ID() string { return "tutorial" }

func (t *TutorialSystem[C]) InitState(st *engine.MatchState[C]) {
	st.Sys.Tutorial = &engine.TutorialState{Active: len(t.steps) > 0}
}

// BeforeCommand отклоняет доменные команды, не совпадающие с текущим шагом.
// Команды уровня ядра (ответы на интеракции, пасы, читы) сценарий не
// ограничивает: шаг, чья команда породила выбор, иначе было бы не завершить.
func (t *TutorialSystem[C]) BeforeCommand(st *engine.MatchState[C], cmd engine.Command) error {
	switch cmd.Type {
	case CommandResolveChoice, CommandCancelChoice, CommandPassResponse, CommandCheat:
		return nil
	}
	tut := st.Sys.Tutorial
	if tut == nil || !tut.Active || tut.StepIndex >= len(t.steps) {
		return nil
	}
	step := t.steps[tut.StepIndex]
	if cmd.Type != step.Command {
		return fmt.Errorf("tutorial_expects:%s", step.Command)
	}
	return nil
}

// AfterEvents продвигает сценарий, когда в партии появилось событие,
// порожденное ожидаемой командой текущего шага.
func (t *TutorialSystem[C]) AfterEvents(st *engine.MatchState[C], batch []engine.Event) (engine.HookResult, error) {
	tut := st.Sys.Tutorial
	if tut == nil || !tut.Active || tut.StepIndex >= len(t.steps) {
		return engine.HookResult{}, nil
	}

	step := t.steps[tut.StepIndex]
	for _, ev := range batch {
		if ev.SourceCommandType != step.Command {
			continue
		}

		tut.CompletedSteps = append(tut.CompletedSteps, step.ID)
		tut.StepIndex++

		payload := TutorialAdvancedPayload{StepID: step.ID}
		if tut.StepIndex >= len(t.steps) {
			tut.Active = false
			payload.Finished = true
		} else {
			payload.NextStep = t.steps[tut.StepIndex].ID
		}

		return engine.HookResult{Events: []engine.Event{
			engine.NewEvent(EventTutorialAdvanced, payload, ev.Timestamp, ev.SourceCommandType),
		}}, nil
	}
	return engine.HookResult{}, nil
}
