package storage

import (
	"os"
	"path/filepath"
	"testing"

	"repomap/internal/logging"
	"repomap/internal/model"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	root := t.TempDir()
	db, err := Open(root, logging.Discard())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, root
}

func TestOpenCreatesDirectory(t *testing.T) {
	_, root := openTestDB(t)
	if _, err := os.Stat(filepath.Join(root, ".repomap", "repomap.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestCodeSnapshotRoundTrip(t *testing.T) {
	db, _ := openTestDB(t)

	idx := model.NewStructureIndex("run-1", "/repo")
	idx.Merge(&model.ParseResult{
		File:     "src/a.ts",
		Language: "typescript",
		Symbols: []model.Symbol{
			{ID: "src/a.ts:f:1", Name: "f", Kind: model.KindFunction, File: "src/a.ts", Line: 1},
		},
	})

	if err := db.SaveCodeIndex(idx); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := db.LoadCodeIndex()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("snapshot missing after save")
	}
	if loaded.RunID != "run-1" {
		t.Errorf("RunID = %q", loaded.RunID)
	}
	if _, ok := loaded.Symbols["src/a.ts:f:1"]; !ok {
		t.Errorf("symbols lost: %v", loaded.Symbols)
	}
}

func TestSnapshotReplacedWholesale(t *testing.T) {
	db, _ := openTestDB(t)

	first := &model.InfraIndex{RunID: "run-1", Resources: []model.Resource{
		{Type: "aws_vpc", Name: "main"},
		{Type: "aws_subnet", Name: "a"},
	}}
	second := &model.InfraIndex{RunID: "run-2", Resources: []model.Resource{
		{Type: "aws_vpc", Name: "main"},
	}}

	if err := db.SaveInfraIndex(first); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveInfraIndex(second); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.LoadInfraIndex()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != "run-2" {
		t.Errorf("old snapshot survived: %q", loaded.RunID)
	}
	// No accumulation across runs: the previous run's resources are gone.
	if len(loaded.Resources) != 1 {
		t.Errorf("resources accumulated across runs: %d", len(loaded.Resources))
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	db, _ := openTestDB(t)

	idx, err := db.LoadCodeIndex()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != nil {
		t.Errorf("expected nil for missing snapshot, got %+v", idx)
	}
}

func TestCodeAndInfraSnapshotsIndependent(t *testing.T) {
	db, _ := openTestDB(t)

	if err := db.SaveCodeIndex(model.NewStructureIndex("code-run", "/repo")); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveInfraIndex(&model.InfraIndex{RunID: "infra-run"}); err != nil {
		t.Fatal(err)
	}

	code, err := db.LoadCodeIndex()
	if err != nil || code == nil || code.RunID != "code-run" {
		t.Errorf("code snapshot wrong: %v %v", code, err)
	}
	infra, err := db.LoadInfraIndex()
	if err != nil || infra == nil || infra.RunID != "infra-run" {
		t.Errorf("infra snapshot wrong: %v %v", infra, err)
	}
}
