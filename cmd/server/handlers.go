package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/persist"
	"github.com/xtding233/heelshift/internal/resolve"
	"github.com/xtding233/heelshift/internal/store"
	"github.com/xtding233/heelshift/internal/transport/ws"
)

var errBadRequest = errors.New("bad request")

type app struct {
	store        *store.Store
	resolver     *resolve.Resolver
	loader       *persist.Loader
	history      *persist.History
	log          *log.Logger
	backupOnSave bool
	now          func() time.Time
}

type errResp struct {
	Err string `json:"err"`
}

type documentResp struct {
	Document model.Document `json:"document"`
	Warnings []string       `json:"warnings,omitempty"`
	External []uint32       `json:"external,omitempty"`
}

type configResp struct {
	Config   *model.EntityConfig `json:"config"`
	Disabled []int               `json:"disabled,omitempty"` // rules switched off by an enable
	Warning  string              `json:"warning,omitempty"`
}

type saveResp struct {
	Revision int64    `json:"revision"`
	Backup   string   `json:"backup,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/document", a.handleDocument)
	mux.HandleFunc("PUT /v1/options", a.handleOptions)
	mux.HandleFunc("POST /v1/resolve", a.handleResolve)
	mux.HandleFunc("POST /v1/save", a.handleSave)
	mux.HandleFunc("POST /v1/reload", a.handleReload)
	mux.HandleFunc("GET /v1/history", a.handleHistory)
	mux.HandleFunc("POST /v1/history/{rev}/restore", a.handleRestore)
	mux.HandleFunc("GET /v1/backups", a.handleBackups)
	mux.HandleFunc("POST /v1/backups/{name}/restore", a.handleRestoreBackup)

	mux.HandleFunc("POST /v1/characters", a.handleAddCharacter)
	mux.HandleFunc("DELETE /v1/characters/{world}/{name}", a.handleRemoveCharacter)
	mux.HandleFunc("POST /v1/characters/{world}/{name}/rename", a.handleRenameCharacter)
	mux.HandleFunc("POST /v1/characters/{world}/{name}/copy", a.handleCopyCharacter)
	mux.HandleFunc("POST /v1/characters/{world}/{name}/group", a.handleGroupFromCharacter)

	mux.HandleFunc("POST /v1/groups", a.handleAddGroup)
	mux.HandleFunc("DELETE /v1/groups/{id}", a.handleRemoveGroup)
	mux.HandleFunc("POST /v1/groups/{id}/move", a.handleMoveGroup)
	mux.HandleFunc("PUT /v1/groups/{id}/filter", a.handleGroupFilter)
	mux.HandleFunc("POST /v1/groups/{id}/clans/{clan}", a.handleToggleClan)
	mux.HandleFunc("POST /v1/groups/{id}/members", a.handleAddMember)
	mux.HandleFunc("DELETE /v1/groups/{id}/members/{index}", a.handleRemoveMember)

	// rule editing is shared by characters and groups
	for _, prefix := range []string{"/v1/characters/{world}/{name}", "/v1/groups/{id}"} {
		mux.HandleFunc("PATCH "+prefix, a.handlePatchConfig)
		mux.HandleFunc("POST "+prefix+"/offsets", a.handleAddOffset)
		mux.HandleFunc("PATCH "+prefix+"/offsets/{index}", a.handlePatchOffset)
		mux.HandleFunc("DELETE "+prefix+"/offsets/{index}", a.handleRemoveOffset)
		mux.HandleFunc("POST "+prefix+"/offsets/{index}/enable", a.handleEnableOffset)
		mux.HandleFunc("POST "+prefix+"/offsets/{index}/disable", a.handleDisableOffset)
		mux.HandleFunc("POST "+prefix+"/offsets/{index}/move", a.handleMoveOffset)
		mux.HandleFunc("POST "+prefix+"/emotes", a.handleAddEmote)
		mux.HandleFunc("PATCH "+prefix+"/emotes/{index}", a.handlePatchEmote)
		mux.HandleFunc("DELETE "+prefix+"/emotes/{index}", a.handleRemoveEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/enable", a.handleEnableEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/disable", a.handleDisableEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/move", a.handleMoveEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/link", a.handleLinkEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/unlink", a.handleUnlinkEmote)
		mux.HandleFunc("POST "+prefix+"/emotes/{index}/split", a.handleSplitEmote)
	}
	return mux
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, persist.ErrBackupName),
		errors.Is(err, model.ErrEmotePrimary),
		errors.Is(err, model.ErrEmoteLinked),
		errors.Is(err, model.ErrEmoteMissing):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, model.ErrIndex),
		errors.Is(err, persist.ErrNoRevision),
		errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrKeyConflict),
		errors.Is(err, model.ErrRuleLocked):
		status = http.StatusConflict
	}
	writeJSON(w, status, errResp{Err: err.Error()})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid body: %v", err)
	}
	return nil
}

func pathKey(r *http.Request) (store.Key, error) {
	world, err := strconv.ParseUint(r.PathValue("world"), 10, 16)
	if err != nil {
		return store.Key{}, badRequest("invalid world")
	}
	return store.Key{Name: r.PathValue("name"), World: model.WorldID(world)}, nil
}

func pathIndex(r *http.Request, name string) (int, error) {
	i, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, badRequest("invalid %s", name)
	}
	return i, nil
}

// locate finds the config a rule route addresses: a group when the route
// carries {id}, a character otherwise.
func locate(v store.View, r *http.Request) (*model.EntityConfig, error) {
	if id := r.PathValue("id"); id != "" {
		g, ok := v.Group(id)
		if !ok {
			return nil, store.ErrNotFound
		}
		return &g.EntityConfig, nil
	}
	key, err := pathKey(r)
	if err != nil {
		return nil, err
	}
	cfg, ok := v.Direct(key)
	if !ok {
		return nil, store.ErrNotFound
	}
	return cfg, nil
}

// editConfig runs fn on the addressed config under the write lock and
// answers with a snapshot of the result.
func (a *app) editConfig(w http.ResponseWriter, r *http.Request, fn func(cfg *model.EntityConfig, resp *configResp) error) {
	a.editConfigTx(w, r, func(_ *store.Tx, cfg *model.EntityConfig, resp *configResp) error {
		return fn(cfg, resp)
	})
}

// editConfigTx is editConfig for edits that also read global options.
func (a *app) editConfigTx(w http.ResponseWriter, r *http.Request, fn func(tx *store.Tx, cfg *model.EntityConfig, resp *configResp) error) {
	var resp configResp
	err := a.store.Update(func(tx *store.Tx) error {
		cfg, err := locate(tx.View, r)
		if err != nil {
			return err
		}
		if err := fn(tx, cfg, &resp); err != nil {
			return err
		}
		if cfg.AllOffsetsDisabled() {
			resp.Warning = "all offset rules are disabled"
		}
		resp.Config = cfg.Clone()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) editGroup(w http.ResponseWriter, r *http.Request, fn func(g *model.GroupConfig) error) {
	var out *model.GroupConfig
	err := a.store.Update(func(tx *store.Tx) error {
		g, ok := tx.Group(r.PathValue("id"))
		if !ok {
			return store.ErrNotFound
		}
		if err := fn(g); err != nil {
			return err
		}
		out = g.Clone()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func offsetAt(cfg *model.EntityConfig, i int) (*model.OffsetRule, error) {
	if i < 0 || i >= len(cfg.Offsets) {
		return nil, model.ErrIndex
	}
	return cfg.Offsets[i], nil
}

func emoteAt(cfg *model.EntityConfig, i int) (*model.EmoteRule, error) {
	if i < 0 || i >= len(cfg.Emotes) {
		return nil, model.ErrIndex
	}
	return cfg.Emotes[i], nil
}

// ---- document ----

func (a *app) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc := a.store.Document()
	writeJSON(w, http.StatusOK, documentResp{
		Document: doc,
		Warnings: persist.Warnings(doc),
		External: a.store.ExternalIDs(),
	})
}

func (a *app) handleOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled         *bool `json:"enabled"`
		UseModelOffsets *bool `json:"use_model_offsets"`
		PreferModelPath *bool `json:"prefer_model_path"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	_ = a.store.Update(func(tx *store.Tx) error {
		if req.Enabled != nil {
			tx.SetEnabled(*req.Enabled)
		}
		if req.UseModelOffsets != nil {
			tx.SetUseModelOffsets(*req.UseModelOffsets)
		}
		if req.PreferModelPath != nil {
			tx.SetPreferModelPath(*req.PreferModelPath)
		}
		return nil
	})
	a.handleDocument(w, r)
}

func (a *app) handleResolve(w http.ResponseWriter, r *http.Request) {
	var reqs []resolve.Request
	if err := decodeBody(w, r, &reqs); err != nil {
		writeErr(w, err)
		return
	}
	results := a.resolver.ResolveAll(reqs)
	out := make([]ws.OffsetResult, len(results))
	for i, res := range results {
		out[i] = ws.NewOffsetResult(reqs[i].EntityID, res)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSave writes heels.yaml, records a history revision and, when
// enabled, a compressed backup.
func (a *app) handleSave(w http.ResponseWriter, r *http.Request) {
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if reason == "" {
		reason = "save"
	}
	doc := a.store.Document()
	if err := persist.Validate(doc); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Err: err.Error()})
		return
	}
	if err := a.loader.Save(doc); err != nil {
		writeErr(w, err)
		return
	}
	resp := saveResp{Warnings: persist.Warnings(doc)}
	rev, err := a.history.Record(r.Context(), doc, reason, a.now())
	if err != nil {
		a.log.Printf("history: %v", err)
	}
	resp.Revision = rev
	if a.backupOnSave {
		path, err := a.loader.Backup(doc, a.now())
		if err != nil {
			a.log.Printf("backup: %v", err)
		}
		resp.Backup = path
	}
	a.log.Printf("saved config (revision %d, %s)", rev, reason)
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleReload(w http.ResponseWriter, r *http.Request) {
	doc, err := a.loader.Load()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Err: err.Error()})
		return
	}
	a.store.Replace(doc)
	a.handleDocument(w, r)
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeErr(w, badRequest("invalid limit"))
			return
		}
		limit = v
	}
	revs, err := a.history.List(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

// handleRestore loads a revision into the store. It is not written to disk
// until the next save.
func (a *app) handleRestore(w http.ResponseWriter, r *http.Request) {
	rev, err := strconv.ParseInt(r.PathValue("rev"), 10, 64)
	if err != nil {
		writeErr(w, badRequest("invalid revision"))
		return
	}
	doc, err := a.history.Get(r.Context(), rev)
	if err != nil {
		writeErr(w, err)
		return
	}
	a.store.Replace(doc)
	a.log.Printf("restored revision %d", rev)
	a.handleDocument(w, r)
}

func (a *app) handleBackups(w http.ResponseWriter, r *http.Request) {
	names, err := a.loader.Backups()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backups": names})
}

// handleRestoreBackup loads a compressed backup into the store. Like a
// revision restore it is not written to disk until the next save.
func (a *app) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, err := a.loader.OpenBackup(name)
	switch {
	case err == nil:
	case errors.Is(err, persist.ErrBackupName), errors.Is(err, fs.ErrNotExist):
		writeErr(w, err)
		return
	default:
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Err: err.Error()})
		return
	}
	a.store.Replace(doc)
	a.log.Printf("restored backup %s", name)
	a.handleDocument(w, r)
}

// ---- characters ----

func (a *app) handleAddCharacter(w http.ResponseWriter, r *http.Request) {
	var key store.Key
	if err := decodeBody(w, r, &key); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(key.Name) == "" {
		writeErr(w, store.ErrInvalidKey)
		return
	}
	if !a.store.AddDirect(key) {
		writeErr(w, fmt.Errorf("%s: %w", key, store.ErrKeyConflict))
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (a *app) handleRemoveCharacter(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !a.store.RemoveDirect(key) {
		writeErr(w, fmt.Errorf("%s: %w", key, store.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) moveCharacter(w http.ResponseWriter, r *http.Request, op func(from, to store.Key) error) {
	from, err := pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var to store.Key
	if err := decodeBody(w, r, &to); err != nil {
		writeErr(w, err)
		return
	}
	if err := op(from, to); err != nil {
		writeErr(w, fmt.Errorf("%s -> %s: %w", from, to, err))
		return
	}
	writeJSON(w, http.StatusOK, to)
}

func (a *app) handleRenameCharacter(w http.ResponseWriter, r *http.Request) {
	a.moveCharacter(w, r, a.store.Rename)
}

func (a *app) handleCopyCharacter(w http.ResponseWriter, r *http.Request) {
	a.moveCharacter(w, r, a.store.CopyDirect)
}

func (a *app) handleGroupFromCharacter(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	g, err := a.store.GroupFromDirect(key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.groupSnapshot(g.ID))
}

func (a *app) groupSnapshot(id string) *model.GroupConfig {
	var out *model.GroupConfig
	a.store.Read(func(v store.View) {
		if g, ok := v.Group(id); ok {
			out = g.Clone()
		}
	})
	return out
}

// ---- groups ----

func (a *app) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		req.Label = "New Group"
	}
	g := model.NewGroupConfig(req.Label)
	a.store.AddGroup(g)
	writeJSON(w, http.StatusCreated, a.groupSnapshot(g.ID))
}

func (a *app) handleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	if !a.store.RemoveGroup(r.PathValue("id")) {
		writeErr(w, store.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleMoveGroup(w http.ResponseWriter, r *http.Request) {
	var up bool
	switch r.URL.Query().Get("dir") {
	case "up":
		up = true
	case "down":
	default:
		writeErr(w, badRequest("dir must be up or down"))
		return
	}
	found, moved := a.store.MoveGroup(r.PathValue("id"), up)
	if !found {
		writeErr(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}

func (a *app) handleGroupFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label          *string `json:"label"`
		MatchMasculine *bool   `json:"match_masculine"`
		MatchFeminine  *bool   `json:"match_feminine"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	a.editGroup(w, r, func(g *model.GroupConfig) error {
		if req.Label != nil {
			g.Label = *req.Label
		}
		m, f := g.MatchMasculine, g.MatchFeminine
		if req.MatchMasculine != nil {
			m = *req.MatchMasculine
		}
		if req.MatchFeminine != nil {
			f = *req.MatchFeminine
		}
		g.SetGender(m, f)
		return nil
	})
}

func (a *app) handleToggleClan(w http.ResponseWriter, r *http.Request) {
	clan, err := strconv.ParseUint(r.PathValue("clan"), 10, 16)
	if err != nil {
		writeErr(w, badRequest("invalid clan"))
		return
	}
	a.editGroup(w, r, func(g *model.GroupConfig) error {
		g.ToggleClan(uint16(clan))
		return nil
	})
}

func (a *app) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var m model.Member
	if err := decodeBody(w, r, &m); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(m.Name) == "" {
		writeErr(w, store.ErrInvalidKey)
		return
	}
	a.editGroup(w, r, func(g *model.GroupConfig) error {
		if !g.AddMember(m) {
			return fmt.Errorf("%s@%d: %w", m.Name, m.World, store.ErrKeyConflict)
		}
		return nil
	})
}

func (a *app) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editGroup(w, r, func(g *model.GroupConfig) error {
		if !g.RemoveMember(i) {
			return model.ErrIndex
		}
		return nil
	})
}

// ---- rules ----

func (a *app) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled       *bool    `json:"enabled"`
		DefaultOffset *float64 `json:"default_offset"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		if req.Enabled != nil {
			cfg.Enabled = *req.Enabled
		}
		if req.DefaultOffset != nil {
			cfg.DefaultOffset = *req.DefaultOffset
		}
		return nil
	})
}

// offsetReq creates a rule. Without path_mode the rule matches by path when
// a path is given and the prefer_model_path option is on.
type offsetReq struct {
	Label    string          `json:"label"`
	Offset   float64         `json:"offset"`
	PathMode *bool           `json:"path_mode"`
	Slot     model.EquipSlot `json:"slot"`
	ModelID  uint16          `json:"model_id"`
	Path     string          `json:"path"`
}

func (a *app) handleAddOffset(w http.ResponseWriter, r *http.Request) {
	var req offsetReq
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if !req.Slot.Valid() {
		writeErr(w, badRequest("slot must be one of: Top, Legs, Feet"))
		return
	}
	hasPath := strings.TrimSpace(req.Path) != ""
	if req.PathMode != nil && *req.PathMode && !hasPath {
		writeErr(w, badRequest("path is required when path_mode is set"))
		return
	}
	a.editConfigTx(w, r, func(tx *store.Tx, cfg *model.EntityConfig, _ *configResp) error {
		key := model.ModelKey{Slot: req.Slot, ModelID: req.ModelID, Path: req.Path}
		if req.PathMode != nil {
			key.PathMode = *req.PathMode
		} else {
			key.PathMode = hasPath && tx.PreferModelPath()
		}
		rule := cfg.AddOffsetRule(key)
		rule.Label = req.Label
		rule.Offset = req.Offset
		return nil
	})
}

func (a *app) handlePatchOffset(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Label      *string          `json:"label"`
		Offset     *float64         `json:"offset"`
		Locked     *bool            `json:"locked"`
		Slot       *model.EquipSlot `json:"slot"`
		ModelID    *uint16          `json:"model_id"`
		Path       *string          `json:"path"`
		ToggleMode bool             `json:"toggle_mode"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Slot != nil && !req.Slot.Valid() {
		writeErr(w, badRequest("slot must be one of: Top, Legs, Feet"))
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, resp *configResp) error {
		rule, err := offsetAt(cfg, i)
		if err != nil {
			return err
		}
		if req.Locked != nil {
			rule.Locked = *req.Locked
		}
		edits := req.Label != nil || req.Offset != nil || req.Slot != nil || req.ModelID != nil || req.Path != nil || req.ToggleMode
		if !edits {
			return nil
		}
		if rule.Locked {
			return model.ErrRuleLocked
		}
		// edits apply to a copy so a rejected patch leaves the rule untouched
		next := *rule
		if req.Label != nil {
			next.Label = *req.Label
		}
		if req.Offset != nil {
			next.Offset = *req.Offset
		}
		if req.ToggleMode {
			next.ToggleMode()
		}
		if req.Slot != nil {
			next.Slot = *req.Slot
		}
		if req.ModelID != nil {
			next.ModelID = *req.ModelID
		}
		if req.Path != nil {
			next.Path = *req.Path
		}
		if next.PathMode && strings.TrimSpace(next.Path) == "" {
			return badRequest("path is required in path mode")
		}
		before := rule.ModelKey
		*rule = next
		// a new key may collide with another enabled rule
		if rule.Enabled && !rule.ModelKey.Equal(before) {
			resp.Disabled = offsetIndexes(cfg, model.OffsetDuplicates(cfg, rule))
			return model.EnableOffset(cfg, rule)
		}
		return nil
	})
}

func (a *app) handleRemoveOffset(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		return cfg.RemoveOffsetRule(i)
	})
}

func (a *app) handleEnableOffset(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, resp *configResp) error {
		rule, err := offsetAt(cfg, i)
		if err != nil {
			return err
		}
		resp.Disabled = offsetIndexes(cfg, model.OffsetDuplicates(cfg, rule))
		return model.EnableOffset(cfg, rule)
	})
}

func (a *app) handleDisableOffset(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		rule, err := offsetAt(cfg, i)
		if err != nil {
			return err
		}
		return model.DisableOffset(cfg, rule)
	})
}

func (a *app) handleMoveOffset(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		writeErr(w, badRequest("invalid to"))
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		cfg.Offsets = model.Move(cfg.Offsets, i, to)
		return nil
	})
}

func (a *app) handleAddEmote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string        `json:"label"`
		Emote model.EmoteID `json:"emote"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		rule := cfg.AddEmoteRule(req.Emote)
		rule.Label = req.Label
		return nil
	})
}

func (a *app) handlePatchEmote(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Label           *string     `json:"label"`
		Locked          *bool       `json:"locked"`
		Offset          *model.Vec3 `json:"offset"`
		RotationDegrees *float64    `json:"rotation_degrees"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		rule, err := emoteAt(cfg, i)
		if err != nil {
			return err
		}
		if req.Locked != nil {
			rule.Locked = *req.Locked
		}
		if req.Label == nil && req.Offset == nil && req.RotationDegrees == nil {
			return nil
		}
		if rule.Locked {
			return model.ErrRuleLocked
		}
		if req.Label != nil {
			rule.Label = *req.Label
		}
		if req.Offset != nil {
			rule.Offset = *req.Offset
		}
		if req.RotationDegrees != nil {
			rule.SetRotationDegrees(*req.RotationDegrees)
		}
		return nil
	})
}

func (a *app) handleRemoveEmote(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		return cfg.RemoveEmoteRule(i)
	})
}

func (a *app) handleEnableEmote(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, resp *configResp) error {
		rule, err := emoteAt(cfg, i)
		if err != nil {
			return err
		}
		resp.Disabled = emoteIndexes(cfg, model.EmoteDuplicates(cfg, rule))
		return model.EnableEmote(cfg, rule)
	})
}

func (a *app) handleDisableEmote(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		rule, err := emoteAt(cfg, i)
		if err != nil {
			return err
		}
		return model.DisableEmote(cfg, rule)
	})
}

func (a *app) handleMoveEmote(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		writeErr(w, badRequest("invalid to"))
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, _ *configResp) error {
		cfg.Emotes = model.Move(cfg.Emotes, i, to)
		return nil
	})
}

// emoteIDEdit decodes an emote id body and applies op to the indexed rule.
func (a *app) emoteIDEdit(w http.ResponseWriter, r *http.Request, op func(cfg *model.EntityConfig, i int, id model.EmoteID, resp *configResp) error) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeErr(w, err)
		return
	}
	var id model.EmoteID
	if err := decodeBody(w, r, &id); err != nil {
		writeErr(w, err)
		return
	}
	a.editConfig(w, r, func(cfg *model.EntityConfig, resp *configResp) error {
		return op(cfg, i, id, resp)
	})
}

// handleLinkEmote adds an equivalent emote. Rules that now overlap with an
// enabled rule are switched off the same way an enable does.
func (a *app) handleLinkEmote(w http.ResponseWriter, r *http.Request) {
	a.emoteIDEdit(w, r, func(cfg *model.EntityConfig, i int, id model.EmoteID, resp *configResp) error {
		rule, err := emoteAt(cfg, i)
		if err != nil {
			return err
		}
		if err := rule.Link(id); err != nil {
			return err
		}
		if rule.Enabled {
			resp.Disabled = emoteIndexes(cfg, model.EmoteDuplicates(cfg, rule))
			return model.EnableEmote(cfg, rule)
		}
		return nil
	})
}

func (a *app) handleUnlinkEmote(w http.ResponseWriter, r *http.Request) {
	a.emoteIDEdit(w, r, func(cfg *model.EntityConfig, i int, id model.EmoteID, _ *configResp) error {
		rule, err := emoteAt(cfg, i)
		if err != nil {
			return err
		}
		return rule.Unlink(id)
	})
}

func (a *app) handleSplitEmote(w http.ResponseWriter, r *http.Request) {
	a.emoteIDEdit(w, r, func(cfg *model.EntityConfig, i int, id model.EmoteID, _ *configResp) error {
		_, err := cfg.SplitLinked(i, id)
		return err
	})
}

func offsetIndexes(cfg *model.EntityConfig, rules []*model.OffsetRule) []int {
	var out []int
	for i, o := range cfg.Offsets {
		for _, r := range rules {
			if o == r {
				out = append(out, i)
			}
		}
	}
	return out
}

func emoteIndexes(cfg *model.EntityConfig, rules []*model.EmoteRule) []int {
	var out []int
	for i, e := range cfg.Emotes {
		for _, r := range rules {
			if e == r {
				out = append(out, i)
			}
		}
	}
	return out
}
