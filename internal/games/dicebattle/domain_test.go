package dicebattle

import (
	"encoding/json"
	"testing"

	"boardgame-server/internal/engine"
	"boardgame-server/pkg/random"
)

func TestSetupRequiresTwoPlayers(t *testing.T) {
	_, err := Domain{}.Setup([]engine.PlayerID{"solo"}, random.NewSeeded(1))
	if err == nil {
		t.Fatal("expected error for single player")
	}
}

func TestSetupStartingResources(t *testing.T) {
	core, err := Domain{}.Setup([]engine.PlayerID{"p1", "p2", "p3"}, random.NewSeeded(1))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if len(core.Order) != 3 || core.Order[0] != "p1" {
		t.Errorf("order = %v", core.Order)
	}
	for id, p := range core.Players {
		if p.HP != StartingHP || p.BlockCards != StartingBlocks || p.ReflectCards != StartingReflects {
			t.Errorf("player %s = %+v", id, p)
		}
	}
	if core.TurnPlayer() != "p1" {
		t.Errorf("turn player = %s", core.TurnPlayer())
	}
}

func TestTripleFace(t *testing.T) {
	cases := []struct {
		values []int
		want   int
	}{
		{[]int{3, 3, 3, 1, 1}, 3},
		{[]int{1, 1, 2, 2, 3}, 0},
		{[]int{6, 6, 6, 6, 6}, 6},
		{[]int{2, 2, 2, 5, 5, 5}, 5}, // старшая грань при двух тройках
		{nil, 0},
	}
	for _, c := range cases {
		if got := tripleFace(c.values); got != c.want {
			t.Errorf("tripleFace(%v) = %d, want %d", c.values, got, c.want)
		}
	}
}

func TestReduceIsPure(t *testing.T) {
	core, _ := Domain{}.Setup([]engine.PlayerID{"p1", "p2"}, random.NewSeeded(1))

	ev := engine.NewEvent(EvDamageProposed, DamageProposedPayload{
		AttackerID: "p1", TargetID: "p2", Amount: 4,
	}, 1, CmdAttack)

	out, err := Domain{}.Reduce(core, ev)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if len(out.Pending) != 1 {
		t.Fatalf("pending = %v", out.Pending)
	}
	if len(core.Pending) != 0 {
		t.Error("reduce must not mutate its input")
	}
	out.Players["p2"].HP = 1
	if core.Players["p2"].HP != StartingHP {
		t.Error("reduce output shares player state with input")
	}
}

func TestReduceIgnoresUnknownEvents(t *testing.T) {
	core, _ := Domain{}.Setup([]engine.PlayerID{"p1", "p2"}, random.NewSeeded(1))
	out, err := Domain{}.Reduce(core, engine.NewEvent("SOMETHING_ELSE", nil, 1, ""))
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if out.Players["p1"].HP != StartingHP {
		t.Error("unknown event must leave core unchanged")
	}
}

func TestBlockReducesLastPendingForPlayer(t *testing.T) {
	core, _ := Domain{}.Setup([]engine.PlayerID{"p1", "p2"}, random.NewSeeded(1))
	core.Pending = []PendingDamage{
		{AttackerID: "p1", TargetID: "p2", Amount: 5},
		{AttackerID: "p2", TargetID: "p1", Amount: 2},
	}

	out, err := Domain{}.Reduce(core, engine.NewEvent(EvBlockPlayed, CardPlayedPayload{
		PlayerID: "p2",
	}, 1, CmdPlayBlock))
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if out.Pending[0].Amount != 3 {
		t.Errorf("block should cut incoming damage by 2, got %d", out.Pending[0].Amount)
	}
	if out.Pending[1].Amount != 2 {
		t.Error("block must not touch other players' damage")
	}
	if out.Players["p2"].BlockCards != StartingBlocks-1 {
		t.Errorf("block cards = %d", out.Players["p2"].BlockCards)
	}
}

func TestStatusOptionsOrderIsStable(t *testing.T) {
	core, _ := Domain{}.Setup([]engine.PlayerID{"p1", "p2"}, random.NewSeeded(1))
	core.Players["p2"].Statuses = map[string]int{"burn": 2, "focus": 1}
	core.Players["p1"].Statuses = map[string]int{"stun": 1}

	first := statusOptions(core)
	for i := 0; i < 50; i++ {
		again := statusOptions(core)
		if len(again) != len(first) {
			t.Fatalf("length changed: %v vs %v", again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("order changed at %d: %v vs %v", j, again, first)
			}
		}
	}
	// Порядок: игроки по Order, статусы по фиксированному списку.
	if first[0].OwnerID != "p1" || first[0].StatusID != "stun" {
		t.Errorf("first option = %+v", first[0])
	}
	if first[1].OwnerID != "p2" || first[1].StatusID != "focus" {
		t.Errorf("second option = %+v", first[1])
	}
}

func TestPatchCore(t *testing.T) {
	core, _ := Domain{}.Setup([]engine.PlayerID{"p1", "p2"}, random.NewSeeded(1))

	hp := 5
	raw, _ := json.Marshal(CorePatch{Players: map[engine.PlayerID]PlayerPatch{
		"p2": {HP: &hp, Statuses: map[string]int{"burn": 2}},
	}})
	out, err := PatchCore(core, raw)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if out.Players["p2"].HP != 5 || out.Players["p2"].Statuses["burn"] != 2 {
		t.Errorf("patched player = %+v", out.Players["p2"])
	}
	if out.Players["p2"].BlockCards != StartingBlocks {
		t.Error("untouched fields must survive the patch")
	}
	if core.Players["p2"].HP != StartingHP {
		t.Error("patch must not mutate input")
	}

	if _, err := PatchCore(core, json.RawMessage(`{"players":{"ghost":{}}}`)); err == nil {
		t.Error("expected error for unknown player")
	}
}
