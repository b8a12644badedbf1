// Package dicebattle - компактная референс-игра поверх ядра.
//
// Два и более игроков бросают кубики, атакуют, отвечают на урон картами
// блока/отражения и перекидывают статусы через двухшаговую интеракцию.
// Игра служит исполняемой документацией ядра и материалом для сценарных
// тестов; балансом тут и не пахнет.
package dicebattle

import (
	"encoding/json"
	"errors"
	"fmt"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

// Доменные команды.
const (
	CmdRollDice       engine.CommandType = "ROLL_DICE"
	CmdAttack         engine.CommandType = "ATTACK"
	CmdPlayBlock      engine.CommandType = "PLAY_BLOCK"
	CmdPlayReflect    engine.CommandType = "PLAY_REFLECT"
	CmdTransferStatus engine.CommandType = "TRANSFER_STATUS"
)

// Доменные события.
const (
	EvDiceRolled        engine.EventType = "DICE_ROLLED"
	EvAttackMissed      engine.EventType = "ATTACK_MISSED"
	EvDamageProposed    engine.EventType = "DAMAGE_PROPOSED"
	EvBlockPlayed       engine.EventType = "BLOCK_PLAYED"
	EvReflectPlayed     engine.EventType = "REFLECT_PLAYED"
	EvStatusApplied     engine.EventType = "STATUS_APPLIED"
	EvTransferStarted   engine.EventType = "TRANSFER_STARTED"
	EvStatusTransferred engine.EventType = "STATUS_TRANSFERRED"
	EvTurnStarted       engine.EventType = "TURN_STARTED"
	EvPlayerDied        engine.EventType = "PLAYER_DIED"
	EvMatchEnded        engine.EventType = "MATCH_ENDED"
)

// Фазы матча. endPhase автоматическая: вход в нее сразу передает ход.
const (
	PhaseRoll   = "roll"
	PhaseCombat = "combat"
	PhaseEnd    = "end"

	// WindowDamageResponse - окно ответов после предложенного урона.
	WindowDamageResponse = "damageResponse"

	// Стартовые значения.
	StartingHP       = 20
	StartingBlocks   = 2
	StartingReflects = 1
	DiceCount        = 5
	DieSides         = 6
)

// PlayerState - состояние одного игрока.
type PlayerState struct {
	HP           int            `json:"hp"`
	MaxHP        int            `json:"maxHp"`
	Dice         []int          `json:"dice,omitempty"`
	BlockCards   int            `json:"blockCards"`
	ReflectCards int            `json:"reflectCards"`
	Statuses     map[string]int `json:"statuses,omitempty"`
	Dead         bool           `json:"dead,omitempty"`
}

// PendingDamage - предложенный, но еще не примененный урон.
// Применяется при закрытии окна ответов.
type PendingDamage struct {
	AttackerID engine.PlayerID `json:"attackerId"`
	TargetID   engine.PlayerID `json:"targetId"`
	Amount     int             `json:"amount"`
}

// Core - игровое состояние. Непрозрачно для ядра.
type Core struct {
	Players map[engine.PlayerID]*PlayerState `json:"players"`
	// Order фиксирует порядок игроков: итерация по map недетерминирована,
	// весь игровой код обязан ходить по Order.
	Order   []engine.PlayerID `json:"order"`
	Turn    int               `json:"turn"`
	Pending []PendingDamage   `json:"pending,omitempty"`
}

// TurnPlayer возвращает владельца текущего хода.
func (c Core) TurnPlayer() engine.PlayerID {
	if len(c.Order) == 0 {
		return ""
	}
	return c.Order[c.Turn%len(c.Order)]
}

// clone делает глубокую копию Core. Reduce работает на копии,
// чтобы свертка оставалась чистой.
func (c Core) clone() Core {
	out := c
	out.Players = make(map[engine.PlayerID]*PlayerState, len(c.Players))
	for id, p := range c.Players {
		cp := *p
		cp.Dice = append([]int(nil), p.Dice...)
		if p.Statuses != nil {
			cp.Statuses = make(map[string]int, len(p.Statuses))
			for k, v := range p.Statuses {
				cp.Statuses[k] = v
			}
		}
		out.Players[id] = &cp
	}
	out.Order = append([]engine.PlayerID(nil), c.Order...)
	out.Pending = append([]PendingDamage(nil), c.Pending...)
	return out
}

// --- Payload-структуры команд и событий ---

type RollPayload struct {
	Count int `json:"count,omitempty"` // 0 = DiceCount
}

type AttackPayload struct {
	TargetID engine.PlayerID `json:"targetId"`
}

type DiceRolledPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
	Values   []int           `json:"values"`
}

type DamageProposedPayload struct {
	AttackerID engine.PlayerID `json:"attackerId"`
	TargetID   engine.PlayerID `json:"targetId"`
	Amount     int             `json:"amount"`
}

type CardPlayedPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
}

type StatusAppliedPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
	StatusID string          `json:"statusId"`
	Stacks   int             `json:"stacks"`
}

type TransferStartedPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
}

type StatusTransferredPayload struct {
	StatusID string          `json:"statusId"`
	FromID   engine.PlayerID `json:"fromId"`
	ToID     engine.PlayerID `json:"toId"`
}

type TurnStartedPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
}

type PlayerDiedPayload struct {
	PlayerID engine.PlayerID `json:"playerId"`
}

type MatchEndedPayload struct {
	WinnerIDs []engine.PlayerID `json:"winnerIds,omitempty"`
}

// Domain реализует engine.Domain[Core].
type Domain struct{}

func (Domain) CommandTypes() []engine.CommandType {
	return []engine.CommandType{
		CmdRollDice,
		CmdAttack,
		CmdPlayBlock,
		CmdPlayReflect,
		CmdTransferStatus,
	}
}

// Setup раздает стартовые ресурсы. Порядок игроков - порядок подключения.
func (Domain) Setup(players []engine.PlayerID, _ random.Source) (Core, error) {
	if len(players) < 2 {
		return Core{}, errors.New("need_at_least_two_players")
	}
	core := Core{
		Players: make(map[engine.PlayerID]*PlayerState, len(players)),
		Order:   append([]engine.PlayerID(nil), players...),
	}
	for _, id := range players {
		core.Players[id] = &PlayerState{
			HP:           StartingHP,
			MaxHP:        StartingHP,
			BlockCards:   StartingBlocks,
			ReflectCards: StartingReflects,
		}
	}
	return core, nil
}

// Validate - проверка легальности без каких-либо изменений состояния.
// Владение ходом дополнительно проверяет контроллер фаз; здесь - правила игры.
func (Domain) Validate(st *engine.MatchState[Core], cmd engine.Command) error {
	core := st.Core
	actor, ok := core.Players[cmd.PlayerID]
	if !ok {
		return errors.New("unknown_player")
	}
	if actor.Dead {
		return errors.New("player_is_dead")
	}

	switch cmd.Type {
	case CmdRollDice:
		if st.Sys.Phase != PhaseRoll {
			return errors.New("wrong_phase")
		}
		var p RollPayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &p); err != nil {
				return fmt.Errorf("malformed_payload: %w", err)
			}
		}
		if p.Count < 0 || p.Count > 10 {
			return errors.New("bad_dice_count")
		}
		return nil

	case CmdAttack:
		if st.Sys.Phase != PhaseCombat {
			return errors.New("wrong_phase")
		}
		var p AttackPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("malformed_payload: %w", err)
		}
		target, ok := core.Players[p.TargetID]
		if !ok {
			return errors.New("unknown_target")
		}
		if p.TargetID == cmd.PlayerID {
			return errors.New("cannot_attack_self")
		}
		if target.Dead {
			return errors.New("target_is_dead")
		}
		if len(actor.Dice) == 0 {
			return errors.New("roll_first")
		}
		return nil

	case CmdPlayBlock, CmdPlayReflect:
		win := st.Sys.ResponseWindow.Active
		if win == nil || win.WindowType != WindowDamageResponse {
			return errors.New("no_response_window")
		}
		if !win.IsEligible(cmd.PlayerID) {
			return errors.New("not_eligible")
		}
		if cmd.Type == CmdPlayBlock && actor.BlockCards < 1 {
			return errors.New("no_block_cards")
		}
		if cmd.Type == CmdPlayReflect && actor.ReflectCards < 1 {
			return errors.New("no_reflect_cards")
		}
		if lastPendingFor(core, cmd.PlayerID) == nil {
			return errors.New("no_incoming_damage")
		}
		return nil

	case CmdTransferStatus:
		if st.Sys.Phase != PhaseCombat {
			return errors.New("wrong_phase")
		}
		if len(statusOptions(core)) == 0 {
			return errors.New("no_statuses_in_play")
		}
		return nil
	}
	return fmt.Errorf("unknown_command:%s", cmd.Type)
}

// Execute превращает команду в события. Состояние только читается.
func (Domain) Execute(st *engine.MatchState[Core], cmd engine.Command, rnd random.Source) ([]engine.Event, error) {
	core := st.Core

	switch cmd.Type {
	case CmdRollDice:
		var p RollPayload
		if len(cmd.Payload) > 0 {
			// Валидация уже прошла, ошибки Unmarshal здесь невозможны.
			_ = json.Unmarshal(cmd.Payload, &p)
		}
		count := p.Count
		if count == 0 {
			count = DiceCount
		}
		values := make([]int, count)
		for i := range values {
			values[i] = rnd.Die(DieSides)
		}
		events := []engine.Event{engine.NewEvent(EvDiceRolled, DiceRolledPayload{
			PlayerID: cmd.PlayerID,
			Values:   values,
		}, cmd.Timestamp, cmd.Type)}

		// Три и более одинаковых граней дают бросившему статус "focus".
		if face := tripleFace(values); face > 0 {
			events = append(events, engine.NewEvent(EvStatusApplied, StatusAppliedPayload{
				PlayerID: cmd.PlayerID,
				StatusID: "focus",
				Stacks:   1,
			}, cmd.Timestamp, cmd.Type))
		}
		return events, nil

	case CmdAttack:
		var p AttackPayload
		_ = json.Unmarshal(cmd.Payload, &p)
		hits := 0
		for _, v := range core.Players[cmd.PlayerID].Dice {
			if v >= 4 {
				hits++
			}
		}
		if hits == 0 {
			return []engine.Event{engine.NewEvent(EvAttackMissed, CardPlayedPayload{
				PlayerID: cmd.PlayerID,
			}, cmd.Timestamp, cmd.Type)}, nil
		}
		return []engine.Event{engine.NewEvent(EvDamageProposed, DamageProposedPayload{
			AttackerID: cmd.PlayerID,
			TargetID:   p.TargetID,
			Amount:     hits,
		}, cmd.Timestamp, cmd.Type)}, nil

	case CmdPlayBlock:
		return []engine.Event{engine.NewEvent(EvBlockPlayed, CardPlayedPayload{
			PlayerID: cmd.PlayerID,
		}, cmd.Timestamp, cmd.Type)}, nil

	case CmdPlayReflect:
		// Отражение снижает входящий урон на 1 и предлагает 1 урона
		// в ответ - новое DAMAGE_PROPOSED снова откроет раунд пасов.
		incoming := lastPendingFor(core, cmd.PlayerID)
		return []engine.Event{
			engine.NewEvent(EvReflectPlayed, CardPlayedPayload{
				PlayerID: cmd.PlayerID,
			}, cmd.Timestamp, cmd.Type),
			engine.NewEvent(EvDamageProposed, DamageProposedPayload{
				AttackerID: cmd.PlayerID,
				TargetID:   incoming.AttackerID,
				Amount:     1,
			}, cmd.Timestamp, cmd.Type),
		}, nil

	case CmdTransferStatus:
		return []engine.Event{engine.NewEvent(EvTransferStarted, TransferStartedPayload{
			PlayerID: cmd.PlayerID,
		}, cmd.Timestamp, cmd.Type)}, nil
	}
	return nil, fmt.Errorf("unknown_command:%s", cmd.Type)
}

// Reduce - чистая свертка. Неизвестные (в т.ч. системные) события
// возвращают Core без изменений: свертка тотальна.
func (Domain) Reduce(core Core, ev engine.Event) (Core, error) {
	switch ev.Type {
	case EvDiceRolled:
		var p DiceRolledPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		out.Players[p.PlayerID].Dice = append([]int(nil), p.Values...)
		return out, nil

	case EvStatusApplied:
		var p StatusAppliedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		pl := out.Players[p.PlayerID]
		if pl.Statuses == nil {
			pl.Statuses = make(map[string]int)
		}
		pl.Statuses[p.StatusID] += p.Stacks
		return out, nil

	case EvDamageProposed:
		var p DamageProposedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		out.Pending = append(out.Pending, PendingDamage{
			AttackerID: p.AttackerID,
			TargetID:   p.TargetID,
			Amount:     p.Amount,
		})
		return out, nil

	case EvBlockPlayed:
		var p CardPlayedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		out.Players[p.PlayerID].BlockCards--
		// Блок гасит 2 урона из последнего предложения в адрес игрока.
		for i := len(out.Pending) - 1; i >= 0; i-- {
			if out.Pending[i].TargetID == p.PlayerID {
				out.Pending[i].Amount -= 2
				if out.Pending[i].Amount < 0 {
					out.Pending[i].Amount = 0
				}
				break
			}
		}
		return out, nil

	case EvReflectPlayed:
		var p CardPlayedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		out.Players[p.PlayerID].ReflectCards--
		for i := len(out.Pending) - 1; i >= 0; i-- {
			if out.Pending[i].TargetID == p.PlayerID {
				out.Pending[i].Amount--
				if out.Pending[i].Amount < 0 {
					out.Pending[i].Amount = 0
				}
				break
			}
		}
		return out, nil

	case EvStatusTransferred:
		var p StatusTransferredPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		from := out.Players[p.FromID]
		to := out.Players[p.ToID]
		if from == nil || to == nil || from.Statuses[p.StatusID] < 1 {
			// Протухшее событие (реплей старой версии) - игнорируем.
			return core, nil
		}
		from.Statuses[p.StatusID]--
		if from.Statuses[p.StatusID] == 0 {
			delete(from.Statuses, p.StatusID)
		}
		if to.Statuses == nil {
			to.Statuses = make(map[string]int)
		}
		to.Statuses[p.StatusID]++
		return out, nil

	case EvTurnStarted:
		var p TurnStartedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		for i, id := range out.Order {
			if id == p.PlayerID {
				out.Turn = i
				break
			}
		}
		out.Pending = nil
		out.Players[out.TurnPlayer()].Dice = nil
		return out, nil

	case EvPlayerDied:
		var p PlayerDiedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return core, err
		}
		out := core.clone()
		out.Players[p.PlayerID].Dead = true
		return out, nil
	}

	// Системные события, меняющие Core.
	if applied, out, err := reduceWindowClosed(core, ev); applied {
		return out, err
	}

	return core, nil
}

// lastPendingFor находит последнее предложение урона в адрес игрока.
func lastPendingFor(core Core, p engine.PlayerID) *PendingDamage {
	for i := len(core.Pending) - 1; i >= 0; i-- {
		if core.Pending[i].TargetID == p {
			return &core.Pending[i]
		}
	}
	return nil
}

// tripleFace возвращает грань, выпавшую три и более раз (0 - нет такой).
func tripleFace(values []int) int {
	counts := [DieSides + 1]int{}
	for _, v := range values {
		if v >= 1 && v <= DieSides {
			counts[v]++
		}
	}
	for face := DieSides; face >= 1; face-- {
		if counts[face] >= 3 {
			return face
		}
	}
	return 0
}
