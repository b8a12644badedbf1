package dicebattle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/systems"
	"boardgame-server/internal/testkit"
)

var testPlayers = []engine.PlayerID{"p1", "p2"}

func newMatch(t *testing.T, opts RulesOptions) *testkit.Runner[Core] {
	t.Helper()
	r, err := testkit.NewRunner(testkit.Config[Core]{
		Domain:   Domain{},
		Systems:  Systems(testPlayers, opts),
		Players:  testPlayers,
		Seed:     42,
		DieSides: DieSides,
	})
	require.NoError(t, err)
	return r
}

func TestScriptedRollGrantsFocusOnTriple(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	r.Dice().SetFaces([]int{3, 3, 3, 1, 1})

	res := r.Dispatch("p1", CmdRollDice, nil)
	require.True(t, res.Success, res.Error)

	p1 := r.State().Core.Players["p1"]
	assert.Equal(t, []int{3, 3, 3, 1, 1}, p1.Dice)
	assert.Equal(t, 1, p1.Statuses["focus"], "triple should grant focus")
}

func TestSeededRollsAreDeterministic(t *testing.T) {
	roll := func() []int {
		r := newMatch(t, RulesOptions{})
		res := r.Dispatch("p1", CmdRollDice, nil)
		require.True(t, res.Success, res.Error)
		return r.State().Core.Players["p1"].Dice
	}
	first := roll()
	require.Len(t, first, DiceCount)
	assert.Equal(t, first, roll(), "same seed must produce same dice")
}

// prepareTransfer доводит матч до подвешенного выбора переноса статуса.
func prepareTransfer(t *testing.T, r *testkit.Runner[Core]) {
	t.Helper()
	r.Dice().SetFaces([]int{3, 3, 3, 1, 1})
	r.MustDispatch("p1", CmdRollDice, nil)
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil)
	require.Equal(t, PhaseCombat, r.State().Sys.Phase)

	res := r.Dispatch("p1", CmdTransferStatus, nil)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, r.State().Sys.Interaction.Current)
}

func TestTwoStepTransferInteraction(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	prepareTransfer(t, r)

	cur := r.State().Sys.Interaction.Current
	assert.Equal(t, KindSelectStatus, cur.Kind)
	assert.Equal(t, SourceTransferStatus, cur.SourceID)
	assert.Equal(t, engine.PlayerID("p1"), cur.PlayerID)

	var options []StatusOption
	require.NoError(t, json.Unmarshal(cur.Data, &options))
	require.Len(t, options, 1)
	assert.Equal(t, "focus", options[0].StatusID)

	// Шаг 1: выбор статуса продолжает цепочку, а не закрывает ее.
	res := r.Dispatch("p1", systems.CommandResolveChoice, systems.ResolvePayload{
		Choice: mustRaw(t, options[0]),
	})
	require.True(t, res.Success, res.Error)
	cur = r.State().Sys.Interaction.Current
	require.NotNil(t, cur, "second step expected")
	assert.Equal(t, KindSelectTargetPlayer, cur.Kind)
	assert.Equal(t, SourceTransferStatus, cur.SourceID, "sourceId is inherited")

	// Шаг 2: выбор получателя завершает интеракцию и переносит статус.
	res = r.Dispatch("p1", systems.CommandResolveChoice, systems.ResolvePayload{
		Choice: mustRaw(t, map[string]any{"targetId": "p2"}),
	})
	require.True(t, res.Success, res.Error)
	assert.Nil(t, r.State().Sys.Interaction.Current)

	core := r.State().Core
	assert.Zero(t, core.Players["p1"].Statuses["focus"])
	assert.Equal(t, 1, core.Players["p2"].Statuses["focus"])
}

func TestTransferCancelLeavesStateUntouched(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	prepareTransfer(t, r)

	res := r.Dispatch("p1", systems.CommandCancelChoice, nil)
	require.True(t, res.Success, res.Error)
	assert.Nil(t, r.State().Sys.Interaction.Current)

	// Статус остался у владельца: отмена ничего не переносит.
	assert.Equal(t, 1, r.State().Core.Players["p1"].Statuses["focus"])
}

func TestDomainCommandsGatedWhileInteractionPending(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	prepareTransfer(t, r)

	res := r.Dispatch("p2", CmdRollDice, nil)
	require.False(t, res.Success)
	assert.Equal(t, engine.ErrCommandNotAllowed, res.Error)

	res = r.Dispatch("p2", systems.CommandResolveChoice, nil)
	require.False(t, res.Success)
	assert.Equal(t, "not_your_choice", res.Error)
}

func TestReflectReopensPassRound(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	// 6,6,4 дают 3 попадания: урон 3 в p2.
	r.Dice().SetFaces([]int{6, 6, 4, 2, 1})
	r.MustDispatch("p1", CmdRollDice, nil)
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil)

	res := r.Dispatch("p1", CmdAttack, AttackPayload{TargetID: "p2"})
	require.True(t, res.Success, res.Error)

	win := r.State().Sys.ResponseWindow.Active
	require.NotNil(t, win)
	assert.Equal(t, WindowDamageResponse, win.WindowType)
	assert.Equal(t, []engine.PlayerID{"p2"}, win.EligiblePlayerIDs)

	// Отражение производит новое DAMAGE_PROPOSED в адрес атакующего:
	// раунд пасов начинается заново, теперь участвуют оба.
	res = r.Dispatch("p2", CmdPlayReflect, nil)
	require.True(t, res.Success, res.Error)

	win = r.State().Sys.ResponseWindow.Active
	require.NotNil(t, win, "window must stay open after re-trigger")
	assert.Empty(t, win.PassedPlayerIDs, "passes reset on new trigger")
	assert.Equal(t, []engine.PlayerID{"p1", "p2"}, win.EligiblePlayerIDs)

	r.MustDispatch("p1", systems.CommandPassResponse, nil)
	require.NotNil(t, r.State().Sys.ResponseWindow.Active)

	res = r.Dispatch("p2", systems.CommandPassResponse, nil)
	require.True(t, res.Success, res.Error)
	assert.Nil(t, r.State().Sys.ResponseWindow.Active)

	// Урон применился только при закрытии окна: 3-1 в p2, 1 в p1.
	core := r.State().Core
	assert.Equal(t, StartingHP-2, core.Players["p2"].HP)
	assert.Equal(t, StartingHP-1, core.Players["p1"].HP)
	assert.Empty(t, core.Pending)
	assert.Equal(t, 0, core.Players["p2"].ReflectCards)
}

func TestAutoSkippedWindowStillAppliesDamage(t *testing.T) {
	r := newMatch(t, RulesOptions{Cheats: true})
	r.Dice().SetFaces([]int{6, 6, 4, 2, 1})
	r.MustDispatch("p1", CmdRollDice, nil)
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil)

	// p2 нечем отвечать: окно схлопывается, урон применяется сразу.
	r.MustDispatch("p1", systems.CommandCheat, systems.CheatPayload{
		CorePatch: mustRaw(t, CorePatch{Players: map[engine.PlayerID]PlayerPatch{
			"p2": {HP: intp(3), BlockCards: intp(0), ReflectCards: intp(0)},
		}}),
	})

	res := r.Dispatch("p1", CmdAttack, AttackPayload{TargetID: "p2"})
	require.True(t, res.Success, res.Error)
	assert.Nil(t, r.State().Sys.ResponseWindow.Active)

	core := r.State().Core
	assert.Equal(t, 0, core.Players["p2"].HP)
	assert.True(t, core.Players["p2"].Dead)

	// Смерть завершает матч.
	require.NotNil(t, r.State().Sys.GameOver)
	assert.Equal(t, []engine.PlayerID{"p1"}, r.State().Sys.GameOver.WinnerIDs)

	res = r.Dispatch("p1", CmdRollDice, nil)
	require.False(t, res.Success)
	assert.Equal(t, "match_is_over", res.Error)
}

func TestTurnRotatesThroughEndPhase(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	r.Dice().SetFaces([]int{2, 2, 1, 1, 5})
	r.MustDispatch("p1", CmdRollDice, nil)
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil) // combat
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil) // end -> auto -> roll

	st := r.State()
	assert.Equal(t, PhaseRoll, st.Sys.Phase)
	assert.Equal(t, engine.PlayerID("p2"), st.Core.TurnPlayer())
	assert.Empty(t, st.Core.Players["p2"].Dice, "new turn player dice reset")

	// Теперь команды p1 отклоняются по владению ходом.
	res := r.Dispatch("p1", CmdRollDice, nil)
	require.False(t, res.Success)
	assert.Equal(t, "not_your_turn", res.Error)
}

func TestTurnRotationSkipsDeadPlayers(t *testing.T) {
	players := []engine.PlayerID{"p1", "p2", "p3"}
	r, err := testkit.NewRunner(testkit.Config[Core]{
		Domain:   Domain{},
		Systems:  Systems(players, RulesOptions{Cheats: true}),
		Players:  players,
		Seed:     42,
		DieSides: DieSides,
	})
	require.NoError(t, err)

	// p2 на грани смерти и без карт-ответов.
	r.MustDispatch("p1", systems.CommandCheat, systems.CheatPayload{
		CorePatch: mustRaw(t, CorePatch{Players: map[engine.PlayerID]PlayerPatch{
			"p2": {HP: intp(1), BlockCards: intp(0), ReflectCards: intp(0)},
		}}),
	})

	r.Dice().SetFaces([]int{6, 6, 4, 2, 1})
	r.MustDispatch("p1", CmdRollDice, nil)
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil)
	r.MustDispatch("p1", CmdAttack, AttackPayload{TargetID: "p2"})

	st := r.State()
	require.True(t, st.Core.Players["p2"].Dead)
	require.Nil(t, st.Sys.GameOver, "two survivors keep playing")

	// Конец хода p1: мертвый p2 пропускается, ход получает p3.
	r.MustDispatch("p1", systems.CommandAdvancePhase, nil)
	assert.Equal(t, PhaseRoll, st.Sys.Phase)
	assert.Equal(t, engine.PlayerID("p3"), st.Core.TurnPlayer())

	res := r.Dispatch("p3", CmdRollDice, nil)
	require.True(t, res.Success, res.Error)
}

func TestScenarioRunner(t *testing.T) {
	r := newMatch(t, RulesOptions{})
	r.Dice().SetFaces([]int{2, 2, 1, 1, 5})

	_, err := r.Run(testkit.Case{
		Name: "out of turn and wrong phase rejections",
		Steps: []testkit.Step{
			{Player: "p2", Command: CmdRollDice, WantError: "not_your_turn"},
			{Player: "p1", Command: CmdAttack, Payload: AttackPayload{TargetID: "p2"}, WantError: "wrong_phase"},
			{Player: "p1", Command: CmdRollDice},
			{Player: "p1", Command: systems.CommandAdvancePhase},
			{Player: "p1", Command: CmdAttack, Payload: AttackPayload{TargetID: "p1"}, WantError: "cannot_attack_self"},
		},
	})
	require.NoError(t, err)
}

func TestReplayProducesIdenticalState(t *testing.T) {
	script := func() *testkit.Runner[Core] {
		r := newMatch(t, RulesOptions{})
		r.Dice().SetFaces([]int{6, 6, 4, 2, 1})
		r.MustDispatch("p1", CmdRollDice, nil)
		r.MustDispatch("p1", systems.CommandAdvancePhase, nil)
		r.MustDispatch("p1", CmdAttack, AttackPayload{TargetID: "p2"})
		r.MustDispatch("p2", systems.CommandPassResponse, nil)
		return r
	}

	a, err := json.Marshal(script().State())
	require.NoError(t, err)
	b, err := json.Marshal(script().State())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "replay must be byte-identical")
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func intp(v int) *int { return &v }
