package systems

import (
	"encoding/json"
	"errors"
	"fmt"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/logger"
	"boardgame-server/pkg/random"
)

// Команда и событие чит-канала.
const (
	CommandCheat engine.CommandType = "CHEAT"

	EventCheatApplied engine.EventType = "SYS_CHEAT_APPLIED"
)

// CheatPayload - типизированный частичный патч состояния.
// Никакого рекурсивного merge: каждое поле - явная операция,
// инварианты ядра (единственная активная интеракция) не обходятся.
type CheatPayload struct {
	// SetPhase переводит матч в фазу без событий входа.
	SetPhase *string `json:"setPhase,omitempty"`
	// ClearInteraction снимает активную интеракцию и чистит очередь.
	ClearInteraction bool `json:"clearInteraction,omitempty"`
	// ClearWindow закрывает активное окно ответов и чистит очередь.
	ClearWindow bool `json:"clearWindow,omitempty"`
	// CorePatch - игровой патч Core, формат задает PatchCore игры.
	CorePatch json.RawMessage `json:"corePatch,omitempty"`
}

// CorePatcher применяет игровой патч к Core. Типизация формата патча -
// на стороне игры; ядро передает сырые байты как есть.
type CorePatcher[C any] func(core C, patch json.RawMessage) (C, error)

// CheatSystem - тест-онли канал переопределения состояния.
// Выключенная система гарантированно no-op: команда CHEAT отклоняется,
// поэтому продакшен-поведение не зависит от ее регистрации.
type CheatSystem[C any] struct {
	engine.Base[C]
	enabled bool
	patcher CorePatcher[C]
}

// NewCheats создает чит-канал. enabled=false оставляет систему
// зарегистрированной, но мертвой - удобно для общих конфигураций.
func NewCheats[C any](enabled bool, patcher CorePatcher[C]) *CheatSystem[C] {
	return &CheatSystem[C]{enabled: enabled, patcher: patcher}
}

func (c *CheatSystem[C]) ID() string { return "cheats" }

func (c *CheatSystem[C]) CommandTypes() []engine.CommandType {
	return []engine.CommandType{CommandCheat}
}

func (c *CheatSystem[C]) HandleCommand(st *engine.MatchState[C], cmd engine.Command, _ random.Source) (bool, []engine.Event, error) {
	if cmd.Type != CommandCheat {
		return false, nil, nil
	}
	if !c.enabled {
		return true, nil, errors.New("cheats_disabled")
	}

	var patch CheatPayload
	if err := json.Unmarshal(cmd.Payload, &patch); err != nil {
		return true, nil, fmt.Errorf("malformed_cheat: %w", err)
	}

	if patch.SetPhase != nil {
		st.Sys.Phase = *patch.SetPhase
	}
	if patch.ClearInteraction {
		st.Sys.Interaction.Current = nil
		st.Sys.Interaction.Queue = nil
	}
	if patch.ClearWindow {
		st.Sys.ResponseWindow.Active = nil
		st.Sys.ResponseWindow.Queue = nil
	}
	if len(patch.CorePatch) > 0 {
		if c.patcher == nil {
			return true, nil, errors.New("core_patch_unsupported")
		}
		core, err := c.patcher(st.Core, patch.CorePatch)
		if err != nil {
			return true, nil, fmt.Errorf("core_patch: %w", err)
		}
		st.Core = core
	}

	if logger.Log != nil {
		logger.Log.WithField("player", cmd.PlayerID).Warn("⚡ Cheat applied")
	}

	return true, []engine.Event{
		engine.NewEvent(EventCheatApplied, patch, cmd.Timestamp, cmd.Type),
	}, nil
}
