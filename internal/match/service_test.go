package match

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/games/dicebattle"
	"boardgame-server/internal/infrastructure/storage"
	"boardgame-server/pkg/api"
)

func newDiceService(t *testing.T) *Service[dicebattle.Core] {
	t.Helper()
	svc := NewService[dicebattle.Core](
		"dicebattle",
		dicebattle.Domain{},
		func(players []engine.PlayerID) []engine.System[dicebattle.Core] {
			return dicebattle.Systems(players, dicebattle.RulesOptions{})
		},
		storage.NewReplayService(t.TempDir()),
	)
	// Детерминированные таймстемпы для воспроизводимых тестов.
	var clock int64
	svc.now = func() int64 { clock++; return clock }
	return svc
}

func TestServiceCreateAndGet(t *testing.T) {
	svc := newDiceService(t)

	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, int64(7), inst.Seed)

	got, ok := svc.Get(inst.ID)
	require.True(t, ok)
	assert.Same(t, inst, got)

	assert.Equal(t, []string{inst.ID}, svc.IDs())
}

func TestServiceGeneratesSeedWhenZero(t *testing.T) {
	svc := newDiceService(t)

	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 0)
	require.NoError(t, err)
	assert.NotZero(t, inst.Seed)
}

func TestHandleCommandBroadcastsUpdate(t *testing.T) {
	svc := newDiceService(t)
	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 7)
	require.NoError(t, err)

	updates := svc.Hub.Register(inst.ID, "client-1")

	res := svc.HandleCommand(inst.ID, api.ClientCommand{
		Command:  string(dicebattle.CmdRollDice),
		PlayerID: "p1",
	})
	require.Equal(t, api.MessageUpdate, res.Type, res.Error)
	assert.NotEmpty(t, res.Events)
	assert.Equal(t, dicebattle.PhaseRoll, res.Phase)

	select {
	case msg := <-updates:
		assert.Equal(t, res.Cursor, msg.Cursor)
	default:
		t.Fatal("subscriber did not receive the update")
	}
}

func TestHandleCommandRejectionIsNotBroadcast(t *testing.T) {
	svc := newDiceService(t)
	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 7)
	require.NoError(t, err)

	updates := svc.Hub.Register(inst.ID, "client-1")

	// Не ход p2: отказ уходит только отправителю.
	res := svc.HandleCommand(inst.ID, api.ClientCommand{
		Command:  string(dicebattle.CmdRollDice),
		PlayerID: "p2",
	})
	assert.Equal(t, api.MessageError, res.Type)
	assert.Equal(t, "not_your_turn", res.Error)

	select {
	case msg := <-updates:
		t.Fatalf("unexpected broadcast: %+v", msg)
	default:
	}
}

func TestHandleCommandUnknownMatch(t *testing.T) {
	svc := newDiceService(t)
	res := svc.HandleCommand("ghost", api.ClientCommand{Command: "ROLL_DICE", PlayerID: "p1"})
	assert.Equal(t, api.MessageError, res.Type)
	assert.Equal(t, "match_not_found", res.Error)
}

func TestReplayRoundTripRestoresIdenticalState(t *testing.T) {
	svc := newDiceService(t)
	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 99)
	require.NoError(t, err)

	commands := []api.ClientCommand{
		{Command: "ROLL_DICE", PlayerID: "p1"},
		{Command: "ADVANCE_PHASE", PlayerID: "p1"},
		{Command: "ATTACK", PlayerID: "p1", Payload: json.RawMessage(`{"targetId":"p2"}`)},
		{Command: "ROLL_DICE", PlayerID: "p2"}, // отказ тоже попадает в запись
	}
	for _, cmd := range commands {
		svc.HandleCommand(inst.ID, cmd)
	}

	path, err := svc.SaveReplay(inst.ID)
	require.NoError(t, err)

	restored, err := svc.LoadReplay(path)
	require.NoError(t, err)

	want, err := inst.Snapshot()
	require.NoError(t, err)
	got, err := restored.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got), "replay must restore identical state")
}

func TestLoadReplayRejectsForeignGame(t *testing.T) {
	svc := newDiceService(t)
	inst, err := svc.Create([]engine.PlayerID{"p1", "p2"}, 1)
	require.NoError(t, err)

	path, err := svc.SaveReplay(inst.ID)
	require.NoError(t, err)

	other := newDiceService(t)
	other.GameID = "chess"
	_, err = other.LoadReplay(path)
	require.Error(t, err)
}
