package testkit

import (
	"encoding/json"
	"errors"

	"boardgame-server/internal/engine"
)

// Harness - явная точка инъекции для тестов: подмена и патч состояния
// матча в обход конвейера. Выключенный харнесс - гарантированный no-op:
// все мутирующие операции возвращают ошибку. Продакшен-код харнесс
// не создает вовсе; раннер остается единственным путем команд.
type Harness[C any] struct {
	runner  *Runner[C]
	enabled bool

	// история команд, прошедших через Dispatch харнесса
	history []engine.Command
}

// NewHarness оборачивает раннер. enabled=false создает инертную обертку:
// удобно держать один и тот же сетап для обычных и инъекционных тестов.
func NewHarness[C any](r *Runner[C], enabled bool) *Harness[C] {
	return &Harness[C]{runner: r, enabled: enabled}
}

// Enabled сообщает, разрешены ли инъекции.
func (h *Harness[C]) Enabled() bool { return h.enabled }

// State - текущее состояние матча (только чтение).
func (h *Harness[C]) State() *engine.MatchState[C] { return h.runner.State() }

// Dispatch проксирует команду в раннер, записывая ее в историю.
// Работает и у выключенного харнесса: прокси не мутирует ничего сам.
func (h *Harness[C]) Dispatch(player engine.PlayerID, t engine.CommandType, payload any) engine.Result[C] {
	res := h.runner.Dispatch(player, t, payload)
	h.history = append(h.history, engine.Command{Type: t, PlayerID: player})
	return res
}

// History возвращает команды, отправленные через харнесс.
func (h *Harness[C]) History() []engine.Command {
	return append([]engine.Command(nil), h.history...)
}

// SetCore целиком подменяет игровое состояние.
func (h *Harness[C]) SetCore(core C) error {
	if !h.enabled {
		return errors.New("harness_disabled")
	}
	h.runner.State().Core = core
	return nil
}

// PatchCore применяет игровой патч через переданную функцию
// (обычно PatchCore конкретной игры).
func (h *Harness[C]) PatchCore(patch any, apply func(core C, raw json.RawMessage) (C, error)) error {
	if !h.enabled {
		return errors.New("harness_disabled")
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	core, err := apply(h.runner.State().Core, raw)
	if err != nil {
		return err
	}
	h.runner.State().Core = core
	return nil
}

// SetPhase переводит матч в фазу без событий входа.
func (h *Harness[C]) SetPhase(phase string) error {
	if !h.enabled {
		return errors.New("harness_disabled")
	}
	h.runner.State().Sys.Phase = phase
	return nil
}

// ClearSuspensions снимает активную интеракцию и окно ответов.
// Журнал событий не трогается: инъекция не переписывает историю.
func (h *Harness[C]) ClearSuspensions() error {
	if !h.enabled {
		return errors.New("harness_disabled")
	}
	sys := &h.runner.State().Sys
	sys.Interaction.Current = nil
	sys.Interaction.Queue = nil
	sys.ResponseWindow.Active = nil
	sys.ResponseWindow.Queue = nil
	return nil
}
