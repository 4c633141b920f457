package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/persist"
	"github.com/xtding233/heelshift/internal/resolve"
	"github.com/xtding233/heelshift/internal/store"
	"github.com/xtding233/heelshift/internal/transport/ws"
)

func newTestApp(t *testing.T) (*app, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	loader := persist.NewLoader(dir)
	history, err := persist.OpenHistory(loader.Paths().HistoryPath())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })

	logger := log.New(io.Discard, "", 0)
	st := store.New(model.DefaultDocument())
	a := &app{
		store:        st,
		resolver:     resolve.New(st, logger),
		loader:       loader,
		history:      history,
		log:          logger,
		backupOnSave: true,
		now:          func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return a, a.routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCharacterLifecycle(t *testing.T) {
	_, h := newTestApp(t)

	if rec := do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73}); rec.Code != http.StatusCreated {
		t.Fatalf("add: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate add: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/characters", store.Key{Name: " ", World: 73}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank add: status %d", rec.Code)
	}
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Bea", World: 73})

	if rec := do(t, h, "POST", "/v1/characters/73/Aria/rename", store.Key{Name: "Bea", World: 73}); rec.Code != http.StatusConflict {
		t.Fatalf("rename onto existing: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/characters/73/Aria/rename", store.Key{Name: "Cid", World: 74}); rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, "DELETE", "/v1/characters/73/Aria", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("old key should be gone: status %d", rec.Code)
	}

	rec := do(t, h, "POST", "/v1/characters/74/Cid/group", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("group from character: status %d", rec.Code)
	}
	g := decode[model.GroupConfig](t, rec)
	if g.Label != "Group from [Cid@74]" || g.Enabled {
		t.Fatalf("unexpected group %+v", g)
	}
}

func TestEnableOffsetThroughGuard(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})

	key := map[string]any{"slot": "Feet", "model_id": 42, "offset": 0.25}
	if rec := do(t, h, "POST", "/v1/characters/73/Aria/offsets", key); rec.Code != http.StatusOK {
		t.Fatalf("add offset: status %d %s", rec.Code, rec.Body)
	}
	key["offset"] = 0.5
	rec := do(t, h, "POST", "/v1/characters/73/Aria/offsets", key)
	resp := decode[configResp](t, rec)
	if resp.Config.Offsets[1].Enabled {
		t.Fatalf("second rule for the same key should start disabled")
	}

	rec = do(t, h, "POST", "/v1/characters/73/Aria/offsets/1/enable", nil)
	resp = decode[configResp](t, rec)
	if !resp.Config.Offsets[1].Enabled || resp.Config.Offsets[0].Enabled {
		t.Fatalf("enable should swap the active rule: %+v", resp.Config.Offsets)
	}
	if len(resp.Disabled) != 1 || resp.Disabled[0] != 0 {
		t.Fatalf("disabled should list rule 0, got %v", resp.Disabled)
	}

	rec = do(t, h, "POST", "/v1/characters/73/Aria/offsets/1/disable", nil)
	resp = decode[configResp](t, rec)
	if resp.Warning == "" {
		t.Fatalf("expected all-disabled warning")
	}

	if rec := do(t, h, "POST", "/v1/characters/73/Aria/offsets/9/enable", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("out of range index: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/characters/73/Aria/offsets", map[string]any{"slot": "Head"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad slot: status %d", rec.Code)
	}
}

func TestLockedRuleRefusesEdits(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})
	do(t, h, "POST", "/v1/characters/73/Aria/emotes", map[string]any{"emote": map[string]any{"mode": 50}})

	if rec := do(t, h, "PATCH", "/v1/characters/73/Aria/emotes/0", map[string]any{"locked": true}); rec.Code != http.StatusOK {
		t.Fatalf("lock: status %d", rec.Code)
	}
	if rec := do(t, h, "PATCH", "/v1/characters/73/Aria/emotes/0", map[string]any{"label": "x"}); rec.Code != http.StatusConflict {
		t.Fatalf("edit locked: status %d", rec.Code)
	}
	if rec := do(t, h, "DELETE", "/v1/characters/73/Aria/emotes/0", nil); rec.Code != http.StatusConflict {
		t.Fatalf("delete locked: status %d", rec.Code)
	}
}

func TestEmoteLinkAndSplit(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/groups", map[string]string{"label": "dancers"})
	rec := do(t, h, "GET", "/v1/document", nil)
	doc := decode[documentResp](t, rec)
	id := doc.Document.Groups[0].ID
	base := "/v1/groups/" + id

	do(t, h, "POST", base+"/emotes", map[string]any{"emote": map[string]any{"mode": 50}})
	do(t, h, "POST", base+"/emotes", map[string]any{"emote": map[string]any{"mode": 51}})

	if rec := do(t, h, "POST", base+"/emotes/0/link", model.EmoteID{Mode: 50}); rec.Code != http.StatusBadRequest {
		t.Fatalf("linking the primary: status %d", rec.Code)
	}
	rec = do(t, h, "POST", base+"/emotes/0/link", model.EmoteID{Mode: 51})
	resp := decode[configResp](t, rec)
	if len(resp.Disabled) != 1 || resp.Config.Emotes[1].Enabled {
		t.Fatalf("linking should disable the overlapping rule: %+v", resp)
	}

	rec = do(t, h, "POST", base+"/emotes/0/split", model.EmoteID{Mode: 51})
	resp = decode[configResp](t, rec)
	if len(resp.Config.Emotes) != 3 || resp.Config.Emotes[1].Emote.Mode != 51 || !resp.Config.Emotes[1].Enabled {
		t.Fatalf("split should insert an enabled rule after the source: %+v", resp.Config.Emotes)
	}
}

func TestGroupEditing(t *testing.T) {
	_, h := newTestApp(t)
	a := decode[model.GroupConfig](t, do(t, h, "POST", "/v1/groups", map[string]string{"label": "a"}))
	b := decode[model.GroupConfig](t, do(t, h, "POST", "/v1/groups", map[string]string{"label": "b"}))

	if rec := do(t, h, "POST", "/v1/groups/"+a.ID+"/move?dir=up", nil); decode[map[string]bool](t, rec)["moved"] {
		t.Fatalf("top group cannot move up")
	}
	do(t, h, "POST", "/v1/groups/"+b.ID+"/move?dir=up", nil)
	doc := decode[documentResp](t, do(t, h, "GET", "/v1/document", nil)).Document
	if doc.Groups[0].ID != b.ID {
		t.Fatalf("b should be first now")
	}

	rec := do(t, h, "PUT", "/v1/groups/"+a.ID+"/filter", map[string]bool{"match_masculine": false, "match_feminine": false})
	g := decode[model.GroupConfig](t, rec)
	if !g.MatchMasculine && !g.MatchFeminine {
		t.Fatalf("one gender must remain")
	}
	g = decode[model.GroupConfig](t, do(t, h, "POST", "/v1/groups/"+a.ID+"/clans/7", nil))
	if len(g.Clans) != 1 || g.Clans[0] != 7 {
		t.Fatalf("clan not toggled: %v", g.Clans)
	}
	do(t, h, "POST", "/v1/groups/"+a.ID+"/members", model.Member{Name: "Guard", World: model.NonPlayer})
	if rec := do(t, h, "POST", "/v1/groups/"+a.ID+"/members", model.Member{Name: "Guard", World: model.NonPlayer}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate member: status %d", rec.Code)
	}
	if rec := do(t, h, "DELETE", "/v1/groups/"+a.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("remove group: status %d", rec.Code)
	}
}

func TestResolvePreview(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})
	do(t, h, "PATCH", "/v1/characters/73/Aria", map[string]any{"default_offset": 0.1})
	do(t, h, "POST", "/v1/characters/73/Aria/offsets", map[string]any{"slot": "Feet", "model_id": 42, "offset": 0.25})

	reqs := []resolve.Request{
		{EntityID: 1, Identity: model.Identity{Name: "Aria", World: 73}, Equipment: model.Equipment{Feet: &model.EquippedModel{ModelID: 42, Path: "chara/feet.mdl"}}},
		{EntityID: 2, Identity: model.Identity{Name: "Aria", World: 73}},
	}
	out := decode[[]ws.OffsetResult](t, do(t, h, "POST", "/v1/resolve", reqs))
	if len(out) != 2 || out[0].Value != 0.25 || out[1].Value != 0.1 {
		t.Fatalf("unexpected preview %+v", out)
	}

	do(t, h, "PUT", "/v1/options", map[string]bool{"enabled": false})
	out = decode[[]ws.OffsetResult](t, do(t, h, "POST", "/v1/resolve", reqs))
	if out[0].Kind != "none" {
		t.Fatalf("global switch off should resolve to none, got %+v", out[0])
	}
}

func TestSaveHistoryRestore(t *testing.T) {
	a, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})

	rec := do(t, h, "POST", "/v1/save?reason=first", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d %s", rec.Code, rec.Body)
	}
	saved := decode[saveResp](t, rec)
	if saved.Revision == 0 || saved.Backup == "" {
		t.Fatalf("save should record history and backup: %+v", saved)
	}
	if _, err := os.Stat(a.loader.Paths().ConfigPath()); err != nil {
		t.Fatalf("heels.yaml not written: %v", err)
	}
	if filepath.Dir(saved.Backup) != a.loader.Paths().BackupDir() {
		t.Fatalf("backup in wrong dir: %s", saved.Backup)
	}

	do(t, h, "DELETE", "/v1/characters/73/Aria", nil)
	revs := decode[[]persist.Revision](t, do(t, h, "GET", "/v1/history", nil))
	if len(revs) != 1 || revs[0].Reason != "first" {
		t.Fatalf("unexpected history %+v", revs)
	}

	rec = do(t, h, "POST", "/v1/history/1/restore", nil)
	doc := decode[documentResp](t, rec).Document
	if doc.Characters[73]["Aria"] == nil {
		t.Fatalf("restore should bring Aria back")
	}
	if rec := do(t, h, "POST", "/v1/history/99/restore", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing revision: status %d", rec.Code)
	}
}

func TestReloadRejectsBrokenFile(t *testing.T) {
	a, h := newTestApp(t)
	if err := os.WriteFile(a.loader.Paths().ConfigPath(), []byte("groups: [{match_masculine: false, match_feminine: false}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, h, "POST", "/v1/reload", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reload broken file: status %d", rec.Code)
	}
}

func TestBackupListAndRestore(t *testing.T) {
	_, h := newTestApp(t)
	if got := decode[map[string][]string](t, do(t, h, "GET", "/v1/backups", nil)); len(got["backups"]) != 0 {
		t.Fatalf("expected no backups yet, got %v", got)
	}
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})
	if rec := do(t, h, "POST", "/v1/save", nil); rec.Code != http.StatusOK {
		t.Fatalf("save: status %d %s", rec.Code, rec.Body)
	}
	do(t, h, "DELETE", "/v1/characters/73/Aria", nil)

	names := decode[map[string][]string](t, do(t, h, "GET", "/v1/backups", nil))["backups"]
	if len(names) != 1 || names[0] != "heels-20260301-120000.000.yaml.zst" {
		t.Fatalf("unexpected backups %v", names)
	}
	rec := do(t, h, "POST", "/v1/backups/"+names[0]+"/restore", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore backup: status %d %s", rec.Code, rec.Body)
	}
	if doc := decode[documentResp](t, rec).Document; doc.Characters[73]["Aria"] == nil {
		t.Fatalf("backup restore should bring Aria back")
	}

	if rec := do(t, h, "POST", "/v1/backups/notes.txt/restore", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad backup name: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/backups/heels-20990101-000000.000.yaml.zst/restore", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing backup: status %d", rec.Code)
	}
}

func TestAddOffsetPrefersModelPath(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})
	add := func(body map[string]any) *model.OffsetRule {
		t.Helper()
		rec := do(t, h, "POST", "/v1/characters/73/Aria/offsets", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("add offset: status %d %s", rec.Code, rec.Body)
		}
		cfg := decode[configResp](t, rec).Config
		return cfg.Offsets[len(cfg.Offsets)-1]
	}

	if r := add(map[string]any{"slot": "Feet", "model_id": 1, "path": "mods/a.mdl"}); r.PathMode {
		t.Fatalf("path mode without prefer_model_path: %+v", r)
	}
	do(t, h, "PUT", "/v1/options", map[string]bool{"prefer_model_path": true})
	if r := add(map[string]any{"slot": "Feet", "model_id": 2, "path": "mods/b.mdl"}); !r.PathMode {
		t.Fatalf("prefer_model_path should select path mode: %+v", r)
	}
	if r := add(map[string]any{"slot": "Feet", "model_id": 3}); r.PathMode {
		t.Fatalf("no path means model id mode: %+v", r)
	}
	if r := add(map[string]any{"slot": "Feet", "model_id": 4, "path": "mods/d.mdl", "path_mode": false}); r.PathMode {
		t.Fatalf("explicit path_mode must win: %+v", r)
	}
}

func TestPatchOffsetRejectsEmptyPathMode(t *testing.T) {
	_, h := newTestApp(t)
	do(t, h, "POST", "/v1/characters", store.Key{Name: "Aria", World: 73})
	do(t, h, "POST", "/v1/characters/73/Aria/offsets", map[string]any{"slot": "Feet", "model_id": 42})

	if rec := do(t, h, "PATCH", "/v1/characters/73/Aria/offsets/0", map[string]any{"toggle_mode": true}); rec.Code != http.StatusBadRequest {
		t.Fatalf("toggle without path: status %d", rec.Code)
	}
	doc := decode[documentResp](t, do(t, h, "GET", "/v1/document", nil)).Document
	if r := doc.Characters[73]["Aria"].Offsets[0]; r.PathMode || r.Slot != model.SlotFeet {
		t.Fatalf("rejected patch must leave the rule untouched: %+v", r)
	}

	rec := do(t, h, "PATCH", "/v1/characters/73/Aria/offsets/0", map[string]any{"toggle_mode": true, "path": "mods/boot.mdl"})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle with path: status %d %s", rec.Code, rec.Body)
	}
	if r := decode[configResp](t, rec).Config.Offsets[0]; !r.PathMode || r.Path != "mods/boot.mdl" {
		t.Fatalf("expected path rule, got %+v", r)
	}
	if rec := do(t, h, "PATCH", "/v1/characters/73/Aria/offsets/0", map[string]any{"path": " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("clearing the path in path mode: status %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/v1/save", nil); rec.Code != http.StatusOK {
		t.Fatalf("save after rejected patches: status %d %s", rec.Code, rec.Body)
	}
}

func TestMoveUnknownGroup(t *testing.T) {
	_, h := newTestApp(t)
	if rec := do(t, h, "POST", "/v1/groups/nope/move?dir=up", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("move unknown group: status %d", rec.Code)
	}
}
