// Package clone implements the Clone Engine (component F): forking a new
// Instance from a v86 State by shelling out to an external Node.js helper
// that resumes the emulator's WASM core from the state dump and re-freezes
// it into one or more fresh content files. Grounded in v86clone.rs.
package clone

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/search"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine drives the clone workflow end to end.
type Engine struct {
	db       *gorm.DB
	store    *storage.Store
	files    catalog.FileRepository
	objects  catalog.ObjectRepository
	states   catalog.StateRepository
	envs     catalog.EnvironmentRepository
	instances catalog.InstanceRepository
	links    catalog.ObjectLinkRepository
	indexer  *search.Indexer
	logger   *zap.Logger

	// ScriptPath is the path to the v86dump Node.js helper, invoked as
	// `node ScriptPath <config-path> <state-path>`.
	ScriptPath string
	// NodeBin overrides the "node" executable name, for environments
	// where it is not on PATH under that name.
	NodeBin string
}

// New returns an Engine wired to the catalog and blob store.
func New(db *gorm.DB, store *storage.Store, files catalog.FileRepository, objects catalog.ObjectRepository, states catalog.StateRepository, envs catalog.EnvironmentRepository, instances catalog.InstanceRepository, links catalog.ObjectLinkRepository, indexer *search.Indexer, logger *zap.Logger, scriptPath string) *Engine {
	return &Engine{
		db: db, store: store, files: files, objects: objects,
		states: states, envs: envs, instances: instances, links: links,
		indexer: indexer, logger: logger.Named("clone_engine"),
		ScriptPath: scriptPath, NodeBin: "node",
	}
}

// Result describes the outcome of a successful clone.
type Result struct {
	NewInstanceID uuid.UUID
}

// Clone validates that environment is a v86 framework and that state
// belongs to instanceID, substitutes $CONTENT{n} tokens (and the
// $CONTENT" special case for index 0) into the environment's config JSON
// (BIOS filename references in it are left unchanged), shells out to the
// Node helper, and
// creates a new Instance with File/Object/link rows for every dumped
// output file. A post-insert failure rolls back the most recently
// inserted blob and returns an IncompleteClone-shaped error carrying the
// new instance id, mirroring the original's partial-success contract.
func (e *Engine) Clone(ctx context.Context, instanceID, stateID uuid.UUID) (Result, error) {
	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return Result{}, apierr.NotFound("instance not found", err)
	}
	env, err := e.envs.GetByID(ctx, instance.EnvironmentID)
	if err != nil {
		return Result{}, apierr.NotFound("environment not found", err)
	}
	if env.Framework != catalog.FrameworkV86 {
		return Result{}, apierr.Protocol(fmt.Sprintf("environment framework %q is not v86", env.Framework), nil)
	}
	state, err := e.states.GetByID(ctx, stateID)
	if err != nil {
		return Result{}, apierr.NotFound("state not found", err)
	}
	if state.InstanceID != instanceID {
		return Result{}, apierr.Protocol("state does not belong to instance", nil)
	}
	if e.ScriptPath == "" {
		return Result{}, apierr.External("no clone script configured for this environment", nil)
	}

	stateFile, err := e.files.GetByID(ctx, state.FileID)
	if err != nil {
		return Result{}, apierr.NotFound("state file not found", err)
	}
	statePath := e.store.AbsolutePath(stateFile.DestPath, stateFile.Hash, stateFile.Filename)

	objectLinks, err := e.links.GetAllForInstanceID(ctx, instanceID)
	if err != nil {
		return Result{}, apierr.Internal("load instance content links", err)
	}

	configJSON, err := substituteContentTokens(env.Config, objectLinks, e.store)
	if err != nil {
		return Result{}, apierr.Protocol("substitute content tokens", err)
	}

	tempDir, err := os.MkdirTemp("", "gisst-clone-*")
	if err != nil {
		return Result{}, apierr.Internal("create clone temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configJSON), 0o644); err != nil {
		return Result{}, apierr.Internal("write clone config", err)
	}

	cmd := exec.CommandContext(ctx, e.nodeBin(), e.ScriptPath, configPath, statePath)
	cmd.Dir = tempDir
	stdout, err := cmd.Output()
	if err != nil {
		return Result{}, apierr.External("run v86 clone script", err)
	}

	outputs, err := parseDumpOutput(stdout)
	if err != nil {
		return Result{}, apierr.External("parse v86 clone output", err)
	}

	newInstance := catalog.Instance{
		WorkID:                instance.WorkID,
		EnvironmentID:         instance.EnvironmentID,
		Config:                instance.Config,
		DerivedFromInstanceID: &instanceID,
		DerivedFromStateID:    &stateID,
	}
	if err := e.instances.Insert(ctx, &newInstance); err != nil {
		return Result{}, apierr.Internal("insert cloned instance", err)
	}

	var insertedFileIDs []uuid.UUID
	roleIndex := 0
	for _, out := range outputs {
		data, err := os.ReadFile(out.path)
		if err != nil {
			e.rollback(insertedFileIDs)
			return Result{NewInstanceID: newInstance.ID}, incompleteClone(fmt.Errorf("read dump output %q: %w", out.path, err))
		}

		obj, err := catalog.InsertFileObject(ctx, e.db, e.store, e.files, e.objects, data, filepath.Base(out.path), "cloned content", newInstance.ID, catalog.DuplicateReuseObject)
		if err != nil {
			e.rollback(insertedFileIDs)
			return Result{NewInstanceID: newInstance.ID}, incompleteClone(fmt.Errorf("insert dump output %q: %w", out.path, err))
		}
		insertedFileIDs = append(insertedFileIDs, obj.FileID)

		if err := e.objects.LinkToInstance(ctx, obj.ID, newInstance.ID, catalog.ObjectRoleContent, roleIndex); err != nil {
			e.rollback(insertedFileIDs)
			return Result{NewInstanceID: newInstance.ID}, incompleteClone(fmt.Errorf("link dump output %q: %w", out.path, err))
		}
		roleIndex++
	}

	if iw, err := e.instances.GetInstanceWork(ctx, newInstance.ID); err == nil {
		if err := e.indexer.UpsertInstance(ctx, *iw); err != nil {
			e.logger.Warn("cloned instance search upsert failed", zap.Stringer("instance_id", newInstance.ID), zap.Error(err))
		}
	} else {
		e.logger.Warn("cloned instance work lookup failed", zap.Stringer("instance_id", newInstance.ID), zap.Error(err))
	}

	return Result{NewInstanceID: newInstance.ID}, nil
}

func (e *Engine) rollback(fileIDs []uuid.UUID) {
	if len(fileIDs) == 0 {
		return
	}
	last := fileIDs[len(fileIDs)-1]
	_ = e.files.DeleteByID(context.Background(), last)
}

func incompleteClone(cause error) error {
	return apierr.External(fmt.Sprintf("clone left in an incomplete state: %v", cause), cause)
}

func (e *Engine) nodeBin() string {
	if e.NodeBin == "" {
		return "node"
	}
	return e.NodeBin
}

// dumpOutput is one "drive:path" line emitted by the Node helper on stdout.
type dumpOutput struct {
	drive string
	path  string
}

func parseDumpOutput(stdout []byte) ([]dumpOutput, error) {
	var outputs []dumpOutput
	sc := bufio.NewScanner(strings.NewReader(string(stdout)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed dump output line %q", line)
		}
		outputs = append(outputs, dumpOutput{drive: parts[0], path: parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("v86 clone script produced no output files")
	}
	return outputs, nil
}

// substituteContentTokens replaces $CONTENT{idx} (and the $CONTENT"
// variant for idx 0) in the environment's config JSON with the absolute
// on-disk path of the idx-th content-role object link. "bios" filename
// references are not rewritten.
func substituteContentTokens(configJSON string, links []catalog.ObjectLink, store *storage.Store) (string, error) {
	contentLinks := make([]catalog.ObjectLink, 0, len(links))
	for _, l := range links {
		if l.Role == catalog.ObjectRoleContent {
			contentLinks = append(contentLinks, l)
		}
	}

	result := configJSON
	for idx, link := range contentLinks {
		path := store.AbsolutePath(link.FileDest, link.FileHash, link.FileName)
		token := "$CONTENT" + strconv.Itoa(idx)
		result = strings.ReplaceAll(result, token, path)
		if idx == 0 {
			result = strings.ReplaceAll(result, `$CONTENT"`, path+`"`)
		}
	}

	var probe map[string]any
	if err := json.Unmarshal([]byte(result), &probe); err != nil {
		return "", fmt.Errorf("substituted config is not valid JSON: %w", err)
	}
	return result, nil
}
