package dicebattle

import (
	"encoding/json"
	"errors"
	"fmt"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/systems"
)

// SourceTransferStatus - идентификатор семейства интеракций переноса статуса.
const SourceTransferStatus = "dicebattle:status-transfer"

// Шаги интеракции переноса статуса.
const (
	KindSelectStatus       = "selectStatus"
	KindSelectTargetPlayer = "selectTargetPlayer"
)

// StatusOption - один вариант на шаге выбора статуса.
type StatusOption struct {
	OwnerID  engine.PlayerID `json:"ownerId"`
	StatusID string          `json:"statusId"`
	Stacks   int             `json:"stacks"`
}

// transferContext переносит выбор первого шага во второй.
type transferContext struct {
	OwnerID  engine.PlayerID `json:"ownerId"`
	StatusID string          `json:"statusId"`
}

// statusOptions собирает все статусы в партии в порядке Order
// (ключи статусов - отсортированной итерацией не пользуемся: внутри
// игрока порядок задает фиксированный список знакомых статусов).
var knownStatuses = []string{"focus", "burn", "stun"}

func statusOptions(core Core) []StatusOption {
	var out []StatusOption
	for _, id := range core.Order {
		p := core.Players[id]
		for _, st := range knownStatuses {
			if n := p.Statuses[st]; n > 0 {
				out = append(out, StatusOption{OwnerID: id, StatusID: st, Stacks: n})
			}
		}
	}
	return out
}

// reduceWindowClosed применяет отложенный урон при закрытии окна ответов.
// Вызывается из Reduce: закрытие окна - единственная точка, где
// предложенный урон становится фактом.
func reduceWindowClosed(core Core, ev engine.Event) (bool, Core, error) {
	if ev.Type != systems.EventWindowClosed {
		return false, core, nil
	}
	var p systems.WindowPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return true, core, err
	}
	if p.WindowType != WindowDamageResponse {
		return false, core, nil
	}

	out := core.clone()
	for _, dmg := range out.Pending {
		target := out.Players[dmg.TargetID]
		if target == nil || dmg.Amount <= 0 {
			continue
		}
		target.HP -= dmg.Amount
		if target.HP < 0 {
			target.HP = 0
		}
	}
	out.Pending = nil
	return true, out, nil
}

// EventSystem - игровая система: создает интеракции и фиксирует исход матча.
type EventSystem struct {
	engine.Base[Core]
}

func (EventSystem) ID() string { return "dicebattle" }

// AfterEvents реагирует на игровые события партии:
//   - TRANSFER_STARTED открывает двухшаговый выбор переноса статуса;
//   - закрытие окна урона может убить игрока;
//   - смерть игрока завершает матч.
func (EventSystem) AfterEvents(st *engine.MatchState[Core], batch []engine.Event) (engine.HookResult, error) {
	var emitted []engine.Event

	for _, ev := range batch {
		switch ev.Type {
		case EvTransferStarted:
			var p TransferStartedPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return engine.HookResult{}, err
			}
			options := statusOptions(st.Core)
			if len(options) == 0 {
				continue // нечего переносить - выбор не создается
			}
			data, err := json.Marshal(options)
			if err != nil {
				return engine.HookResult{}, err
			}
			systems.CreateChoice(st, engine.InteractionDescriptor{
				ID:       fmt.Sprintf("transfer-%d", ev.Timestamp),
				Kind:     KindSelectStatus,
				PlayerID: p.PlayerID,
				SourceID: SourceTransferStatus,
				Data:     data,
			})

		case systems.EventWindowClosed:
			// Урон уже применен сверткой; проверяем смерти.
			for _, id := range st.Core.Order {
				pl := st.Core.Players[id]
				if pl.HP == 0 && !pl.Dead {
					emitted = append(emitted, engine.NewEvent(EvPlayerDied, PlayerDiedPayload{
						PlayerID: id,
					}, ev.Timestamp, ev.SourceCommandType))
				}
			}

		case EvPlayerDied:
			var p PlayerDiedPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return engine.HookResult{}, err
			}
			winners := survivorsExcept(st.Core, p.PlayerID)
			if st.Sys.GameOver == nil && len(winners) <= 1 {
				st.Sys.GameOver = &engine.GameOverState{
					WinnerIDs: winners,
					Reason:    "player_died",
				}
				emitted = append(emitted, engine.NewEvent(EvMatchEnded, MatchEndedPayload{
					WinnerIDs: winners,
				}, ev.Timestamp, ev.SourceCommandType))
			}
		}
	}

	return engine.HookResult{Events: emitted}, nil
}

// survivorsExcept - живые игроки, кроме только что погибшего.
func survivorsExcept(core Core, dead engine.PlayerID) []engine.PlayerID {
	var out []engine.PlayerID
	for _, id := range core.Order {
		if id == dead || core.Players[id].Dead {
			continue
		}
		out = append(out, id)
	}
	return out
}

// NewRegistry собирает резолверы игры.
func NewRegistry() *systems.Registry[Core] {
	reg := systems.NewRegistry[Core]()
	reg.RegisterFunc(SourceTransferStatus, resolveTransfer)
	return reg
}

// resolveTransfer - двухшаговая машина состояний переноса статуса.
// Шаг selectStatus выбирает (владелец, статус) и продолжает цепочку;
// шаг selectTargetPlayer выбирает получателя и эмитит перенос.
func resolveTransfer(st *engine.MatchState[Core], d engine.InteractionDescriptor, choice json.RawMessage, ts int64) (systems.Resolution, error) {
	switch d.Kind {
	case KindSelectStatus:
		var pick StatusOption
		if err := json.Unmarshal(choice, &pick); err != nil {
			return systems.Resolution{}, fmt.Errorf("malformed_choice: %w", err)
		}
		owner, ok := st.Core.Players[pick.OwnerID]
		if !ok || owner.Statuses[pick.StatusID] < 1 {
			return systems.Resolution{}, errors.New("invalid_option")
		}

		ctx, err := json.Marshal(transferContext{OwnerID: pick.OwnerID, StatusID: pick.StatusID})
		if err != nil {
			return systems.Resolution{}, err
		}
		candidates := survivorsExcept(st.Core, pick.OwnerID)
		data, err := json.Marshal(candidates)
		if err != nil {
			return systems.Resolution{}, err
		}
		return systems.Resolution{Next: &engine.InteractionDescriptor{
			Kind:     KindSelectTargetPlayer,
			PlayerID: d.PlayerID,
			Data:     data,
			Context:  ctx,
		}}, nil

	case KindSelectTargetPlayer:
		var target struct {
			TargetID engine.PlayerID `json:"targetId"`
		}
		if err := json.Unmarshal(choice, &target); err != nil {
			return systems.Resolution{}, fmt.Errorf("malformed_choice: %w", err)
		}
		var ctx transferContext
		if err := json.Unmarshal(d.Context, &ctx); err != nil {
			return systems.Resolution{}, fmt.Errorf("broken_context: %w", err)
		}
		if target.TargetID == ctx.OwnerID {
			return systems.Resolution{}, errors.New("invalid_option")
		}
		if pl, ok := st.Core.Players[target.TargetID]; !ok || pl.Dead {
			return systems.Resolution{}, errors.New("invalid_option")
		}

		return systems.Resolution{Events: []engine.Event{
			engine.NewEvent(EvStatusTransferred, StatusTransferredPayload{
				StatusID: ctx.StatusID,
				FromID:   ctx.OwnerID,
				ToID:     target.TargetID,
			}, ts, ""),
		}}, nil
	}
	return systems.Resolution{}, fmt.Errorf("unknown_interaction_kind:%s", d.Kind)
}

// CorePatch - формат чит-патча Core (типизированный, без merge по ключам).
type CorePatch struct {
	Players map[engine.PlayerID]PlayerPatch `json:"players,omitempty"`
}

// PlayerPatch - переопределение полей одного игрока.
type PlayerPatch struct {
	HP           *int           `json:"hp,omitempty"`
	BlockCards   *int           `json:"blockCards,omitempty"`
	ReflectCards *int           `json:"reflectCards,omitempty"`
	Statuses     map[string]int `json:"statuses,omitempty"`
}

// PatchCore применяет чит-патч. Используется только CheatSystem.
func PatchCore(core Core, raw json.RawMessage) (Core, error) {
	var patch CorePatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return core, err
	}
	out := core.clone()
	for id, pp := range patch.Players {
		pl, ok := out.Players[id]
		if !ok {
			return core, fmt.Errorf("unknown_player:%s", id)
		}
		if pp.HP != nil {
			pl.HP = *pp.HP
		}
		if pp.BlockCards != nil {
			pl.BlockCards = *pp.BlockCards
		}
		if pp.ReflectCards != nil {
			pl.ReflectCards = *pp.ReflectCards
		}
		if pp.Statuses != nil {
			pl.Statuses = make(map[string]int, len(pp.Statuses))
			for k, v := range pp.Statuses {
				if v > 0 {
					pl.Statuses[k] = v
				}
			}
		}
	}
	return out, nil
}

// RulesOptions - настройки сборки комплекта систем матча.
type RulesOptions struct {
	// Cheats включает чит-канал (отладка и тесты).
	Cheats bool
	// Tutorial - сценарий обучения; nil для обычного матча.
	Tutorial []systems.TutorialStep
}

// Systems собирает полный комплект систем игры для данного состава игроков.
// Порядок регистрации важен: брокер интеракций и окна стоят до контроллера
// фаз, чтобы их Halt блокировал автопродвижение.
func Systems(players []engine.PlayerID, opts RulesOptions) []engine.System[Core] {
	flow := systems.NewFlow(systems.FlowConfig[Core]{
		Phases: []systems.PhaseDef[Core]{
			{
				Name:  PhaseRoll,
				Owner: func(st *engine.MatchState[Core]) engine.PlayerID { return st.Core.TurnPlayer() },
			},
			{
				Name:  PhaseCombat,
				Owner: func(st *engine.MatchState[Core]) engine.PlayerID { return st.Core.TurnPlayer() },
			},
			{
				Name: PhaseEnd,
				Auto: true,
				OnEnter: func(st *engine.MatchState[Core], ts int64) []engine.Event {
					// Событие называет игрока, чей ход начинается.
					// Мертвые пропускаются: им нечем завершить свой ход.
					core := st.Core
					n := len(core.Order)
					next := core.Order[(core.Turn+1)%n]
					for step := 1; step <= n; step++ {
						cand := core.Order[(core.Turn+step)%n]
						if !core.Players[cand].Dead {
							next = cand
							break
						}
					}
					return []engine.Event{engine.NewEvent(EvTurnStarted, TurnStartedPayload{
						PlayerID: next,
					}, ts, "")}
				},
			},
		},
		// Ответы на урон и пасы приходят вне хода владельца фазы.
		OwnerExempt: []engine.CommandType{CmdPlayBlock, CmdPlayReflect},
	})

	window := systems.NewResponseWindow(systems.ResponseWindowConfig[Core]{
		Triggers: []systems.WindowTrigger{
			{EventType: EvDamageProposed, WindowType: WindowDamageResponse},
		},
		Players:         players,
		AllowedCommands: []engine.CommandType{CmdPlayBlock, CmdPlayReflect},
		HasRespondableContent: func(st *engine.MatchState[Core], p engine.PlayerID, _ string) bool {
			pl := st.Core.Players[p]
			if pl == nil || pl.Dead {
				return false
			}
			if lastPendingFor(st.Core, p) == nil {
				return false
			}
			return pl.BlockCards > 0 || pl.ReflectCards > 0
		},
	})

	var escape []engine.CommandType
	if opts.Cheats {
		escape = append(escape, systems.CommandCheat)
	}

	list := []engine.System[Core]{
		systems.NewInteraction(NewRegistry(), escape...),
		window,
		&EventSystem{},
		flow,
	}
	if opts.Tutorial != nil {
		list = append(list, systems.NewTutorial[Core](opts.Tutorial))
	}
	if opts.Cheats {
		list = append(list, systems.NewCheats[Core](true, PatchCore))
	}
	return list
}
