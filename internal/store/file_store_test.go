package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"heartx/internal/domain"
	"heartx/internal/store"
)

func TestDrafts_SaveLoad_DropsInvalid(t *testing.T) {
	var ds domain.DraftStore = store.NewDraftFileStore(t.TempDir())

	in := []domain.Draft{
		{Index: 2, Target: "carol"},
		{Index: 0, Target: "bob", Aux: "hi"},
		{Index: 7, Target: "nobody"},
		{Index: 1},
	}
	if err := ds.SaveDrafts(in); err != nil {
		t.Fatalf("save drafts: %v", err)
	}
	got, err := ds.LoadDrafts()
	if err != nil {
		t.Fatalf("load drafts: %v", err)
	}
	if len(got) != 2 || got[0].Target != "bob" || got[1].Target != "carol" || got[0].Aux != "hi" {
		t.Fatalf("unexpected drafts: %+v", got)
	}
}

func TestDirectory_MissingThenRoundTrip(t *testing.T) {
	var ds domain.DirectoryStore = store.NewDirectoryFileStore(t.TempDir())

	if _, _, ok, err := ds.LoadDirectory(); err != nil || ok {
		t.Fatalf("expected empty directory, ok=%v err=%v", ok, err)
	}

	dir := domain.Directory{"alice": domain.X25519Public{1, 2, 3}}
	at := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	if err := ds.SaveDirectory(dir, at); err != nil {
		t.Fatalf("save directory: %v", err)
	}
	got, fetchedAt, ok, err := ds.LoadDirectory()
	if err != nil || !ok {
		t.Fatalf("load directory: ok=%v err=%v", ok, err)
	}
	if got["alice"] != dir["alice"] || !fetchedAt.Equal(at) {
		t.Fatalf("mismatch after load: %+v %v", got, fetchedAt)
	}
}

func TestLateItems_RoundTrip(t *testing.T) {
	var ls domain.LateStore = store.NewLateFileStore(t.TempDir())

	items, err := ls.LoadLateItems()
	if err != nil || len(items) != 0 {
		t.Fatalf("expected no items, got %v %v", items, err)
	}
	items["x"] = domain.LateItem{ID: "x", Fingerprint: "ff", State: domain.LatePrompted}
	if err := ls.SaveLateItems(items); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := ls.LoadLateItems()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["x"].State != domain.LatePrompted {
		t.Fatalf("state lost: %+v", got["x"])
	}
}

func TestAux_SaveAndClear(t *testing.T) {
	var as domain.AuxStore = store.NewAuxFileStore(t.TempDir())

	if err := as.SaveAux("bob", "song-42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := as.SaveAux("carol", "x"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := as.SaveAux("carol", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, err := as.LoadAux()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if all["bob"] != "song-42" || len(all) != 1 {
		t.Fatalf("unexpected aux: %+v", all)
	}
}

func TestLocal_WipeRemovesFiles(t *testing.T) {
	home := t.TempDir()
	l := store.NewLocal(home, "alice@example")

	if err := l.SaveCursor("inbox", time.Now()); err != nil {
		t.Fatalf("save cursor: %v", err)
	}
	if err := l.SaveDrafts([]domain.Draft{{Index: 0, Target: "bob"}}); err != nil {
		t.Fatalf("save drafts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(l.Dir(), "drafts.json")); err != nil {
		t.Fatalf("drafts file missing: %v", err)
	}

	if err := l.Wipe(); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if err := l.Wipe(); err != nil {
		t.Fatalf("second wipe: %v", err)
	}
	drafts, err := l.LoadDrafts()
	if err != nil || len(drafts) != 0 {
		t.Fatalf("drafts survived wipe: %v %v", drafts, err)
	}
	at, err := l.LoadCursor("inbox")
	if err != nil || !at.IsZero() {
		t.Fatalf("cursor survived wipe: %v %v", at, err)
	}
}
