package testkit

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestAuditInteractions(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "game.go", `package game

const srcPick = "game:pick"

func a() {
	_ = engine.InteractionDescriptor{Kind: "k", SourceID: srcPick}
	_ = engine.InteractionDescriptor{Kind: "k", SourceID: "game:literal"}
	_ = engine.InteractionDescriptor{Kind: "k", SourceID: dynamicID()}
}
`)
	// _test.go не участвует в аудите.
	writeSource(t, dir, "game_test.go", `package game

func b() {
	_ = engine.InteractionDescriptor{SourceID: "game:test-only"}
}
`)

	report, err := AuditInteractions(dir, []string{"game:pick", "game:unused"})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	if len(report.Used) != 2 || report.Used[0] != "game:literal" || report.Used[1] != "game:pick" {
		t.Errorf("used = %v", report.Used)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != "game:literal" {
		t.Errorf("orphans = %v", report.Orphans)
	}
	if len(report.Dangling) != 1 || report.Dangling[0] != "game:unused" {
		t.Errorf("dangling = %v", report.Dangling)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("warnings = %v", report.Warnings)
	}
	if report.Clean() {
		t.Error("report with findings must not be clean")
	}
}

func TestAuditCleanReport(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "game.go", `package game

const srcOnly = "game:only"

func a() {
	_ = InteractionDescriptor{SourceID: srcOnly}
}
`)

	report, err := AuditInteractions(dir, []string{"game:only"})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got %+v", report)
	}
}

func TestAuditWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cards")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSource(t, sub, "cards.go", `package cards

func a() {
	_ = engine.InteractionDescriptor{SourceID: "cards:deep"}
}
`)

	report, err := AuditInteractions(dir, nil)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != "cards:deep" {
		t.Errorf("orphans = %v", report.Orphans)
	}
}
