// Package search implements the Search Indexer (component C): an
// incremental full-text index over Instances, States, Replays, Saves and
// Creators, backed by Meilisearch. Grounded in search.rs's SearchIndexer
// trait and MeiliSearch struct — write-side upserts are separated from the
// read-side query handles, matching that split.
package search

import (
	"context"
	"fmt"

	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const defaultChunkSize = 10_000

const (
	indexInstances = "instances"
	indexStates    = "states"
	indexReplays   = "replays"
	indexSaves     = "saves"
	indexCreators  = "creators"
)

// instanceDoc, stateDoc, replayDoc, saveDoc, and creatorDoc are the
// Meilisearch document shapes upserted per entity.
type instanceDoc struct {
	ID           string `json:"id"`
	WorkName     string `json:"work_name"`
	WorkVersion  string `json:"work_version"`
	WorkPlatform string `json:"work_platform"`
}

type stateDoc struct {
	ID           string `json:"id"`
	InstanceID   string `json:"instance_id"`
	WorkName     string `json:"work_name"`
	WorkPlatform string `json:"work_platform"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

type replayDoc struct {
	ID           string `json:"id"`
	InstanceID   string `json:"instance_id"`
	WorkName     string `json:"work_name"`
	WorkPlatform string `json:"work_platform"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

type saveDoc struct {
	ID           string `json:"id"`
	InstanceID   string `json:"instance_id"`
	WorkName     string `json:"work_name"`
	WorkPlatform string `json:"work_platform"`
	ShortDesc    string `json:"short_desc"`
	Description  string `json:"description"`
}

type creatorDoc struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Indexer is the write-side SearchIndexer: upserts single rows as the
// catalog mutates, and performs bulk Reindex from scratch.
type Indexer struct {
	client meilisearch.ServiceManager
	log    *zap.Logger

	instances catalog.InstanceRepository
	states    catalog.StateRepository
	replays   catalog.ReplayRepository
	saves     catalog.SaveRepository
	creators  catalog.CreatorRepository
}

// Config holds the Meilisearch connection parameters (internal/config
// surfaces these under the "search" section).
type Config struct {
	Host   string
	APIKey string
}

// New connects to Meilisearch and returns an Indexer. Index creation is
// idempotent — Meilisearch no-ops on an index that already exists.
func New(cfg Config, instances catalog.InstanceRepository, states catalog.StateRepository, replays catalog.ReplayRepository, saves catalog.SaveRepository, creators catalog.CreatorRepository, log *zap.Logger) (*Indexer, error) {
	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	idx := &Indexer{client: client, log: log, instances: instances, states: states, replays: replays, saves: saves, creators: creators}
	for _, name := range []string{indexInstances, indexStates, indexReplays, indexSaves, indexCreators} {
		if _, err := client.CreateIndex(&meilisearch.IndexConfig{Uid: name, PrimaryKey: "id"}); err != nil {
			return nil, fmt.Errorf("search: create index %s: %w", name, err)
		}
	}
	filterable := []string{"work_platform"}
	if _, err := client.Index(indexInstances).UpdateFilterableAttributes(&filterable); err != nil {
		return nil, fmt.Errorf("search: set filterable attributes on %s: %w", indexInstances, err)
	}
	return idx, nil
}

// UpsertInstance indexes a single Instance, matching upsert_instance.
func (idx *Indexer) UpsertInstance(ctx context.Context, iw catalog.InstanceWork) error {
	doc := instanceDoc{
		ID:           iw.InstanceID.String(),
		WorkName:     iw.WorkName,
		WorkVersion:  iw.WorkVersion,
		WorkPlatform: iw.WorkPlatform,
	}
	return addDocuments(idx.client, indexInstances, []instanceDoc{doc})
}

// UpsertState indexes a single State, matching upsert_state.
func (idx *Indexer) UpsertState(ctx context.Context, s catalog.State, workName, workPlatform string) error {
	doc := stateDoc{
		ID:           s.ID.String(),
		InstanceID:   s.InstanceID.String(),
		WorkName:     workName,
		WorkPlatform: workPlatform,
		Name:         s.Name,
		Description:  s.Description,
	}
	return addDocuments(idx.client, indexStates, []stateDoc{doc})
}

// UpsertReplay indexes a single Replay, matching upsert_replay.
func (idx *Indexer) UpsertReplay(ctx context.Context, r catalog.Replay, workName, workPlatform string) error {
	doc := replayDoc{
		ID:           r.ID.String(),
		InstanceID:   r.InstanceID.String(),
		WorkName:     workName,
		WorkPlatform: workPlatform,
		Name:         r.Name,
		Description:  r.Description,
	}
	return addDocuments(idx.client, indexReplays, []replayDoc{doc})
}

// UpsertSave indexes a single Save, matching upsert_save.
func (idx *Indexer) UpsertSave(ctx context.Context, s catalog.Save, workName, workPlatform string) error {
	doc := saveDoc{
		ID:           s.ID.String(),
		InstanceID:   s.InstanceID.String(),
		WorkName:     workName,
		WorkPlatform: workPlatform,
		ShortDesc:    s.ShortDesc,
		Description:  s.Description,
	}
	return addDocuments(idx.client, indexSaves, []saveDoc{doc})
}

// UpsertCreator indexes a single Creator, matching upsert_creator.
func (idx *Indexer) UpsertCreator(ctx context.Context, c catalog.Creator) error {
	doc := creatorDoc{ID: c.ID.String(), Username: c.Username, FullName: c.FullName}
	return addDocuments(idx.client, indexCreators, []creatorDoc{doc})
}

// ReindexReport summarizes a Reindex run: rows processed per entity and
// any chunk-level failures collected rather than aborting the run —
// resolving Open Question 3 (a reindex is best-effort; failures are
// reported, not fatal).
type ReindexReport struct {
	Instances, States, Replays, Saves, Creators int
	Errors                                      []error
}

// Reindex streams every entity from the catalog in defaultChunkSize
// batches and upserts each chunk, collecting (not aborting on) partial
// chunk failures — matching search.rs's reindex behavior.
func (idx *Indexer) Reindex(ctx context.Context) ReindexReport {
	var report ReindexReport

	// collect records a failed chunk and lets the stream go on to the next.
	collect := func(what string, err error) error {
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("reindex %s chunk: %w", what, err))
		}
		return nil
	}

	err := idx.instances.StreamInstanceWork(ctx, defaultChunkSize, func(chunk []catalog.InstanceWork) error {
		docs := make([]instanceDoc, 0, len(chunk))
		for _, iw := range chunk {
			docs = append(docs, instanceDoc{
				ID:           iw.InstanceID.String(),
				WorkName:     iw.WorkName,
				WorkVersion:  iw.WorkVersion,
				WorkPlatform: iw.WorkPlatform,
			})
		}
		report.Instances += len(docs)
		return collect("instances", addDocuments(idx.client, indexInstances, docs))
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("reindex instances: %w", err))
	}

	if err := idx.states.Stream(ctx, defaultChunkSize, func(chunk []catalog.State) error {
		docs := make([]stateDoc, 0, len(chunk))
		for _, s := range chunk {
			docs = append(docs, stateDoc{ID: s.ID.String(), InstanceID: s.InstanceID.String(), Name: s.Name, Description: s.Description})
		}
		report.States += len(docs)
		return collect("states", addDocuments(idx.client, indexStates, docs))
	}); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("reindex states: %w", err))
	}

	if err := idx.replays.Stream(ctx, defaultChunkSize, func(chunk []catalog.Replay) error {
		docs := make([]replayDoc, 0, len(chunk))
		for _, r := range chunk {
			docs = append(docs, replayDoc{ID: r.ID.String(), InstanceID: r.InstanceID.String(), Name: r.Name, Description: r.Description})
		}
		report.Replays += len(docs)
		return collect("replays", addDocuments(idx.client, indexReplays, docs))
	}); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("reindex replays: %w", err))
	}

	if err := idx.saves.Stream(ctx, defaultChunkSize, func(chunk []catalog.Save) error {
		docs := make([]saveDoc, 0, len(chunk))
		for _, s := range chunk {
			docs = append(docs, saveDoc{ID: s.ID.String(), InstanceID: s.InstanceID.String(), ShortDesc: s.ShortDesc, Description: s.Description})
		}
		report.Saves += len(docs)
		return collect("saves", addDocuments(idx.client, indexSaves, docs))
	}); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("reindex saves: %w", err))
	}

	if err := idx.creators.Stream(ctx, defaultChunkSize, func(chunk []catalog.Creator) error {
		docs := make([]creatorDoc, 0, len(chunk))
		for _, c := range chunk {
			docs = append(docs, creatorDoc{ID: c.ID.String(), Username: c.Username, FullName: c.FullName})
		}
		report.Creators += len(docs)
		return collect("creators", addDocuments(idx.client, indexCreators, docs))
	}); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("reindex creators: %w", err))
	}

	if idx.log != nil {
		idx.log.Info("search reindex complete",
			zap.Int("instances", report.Instances),
			zap.Int("states", report.States),
			zap.Int("replays", report.Replays),
			zap.Int("saves", report.Saves),
			zap.Int("creators", report.Creators),
			zap.Int("errors", len(report.Errors)),
		)
	}
	return report
}

func addDocuments[T any](client meilisearch.ServiceManager, index string, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := client.Index(index).AddDocuments(docs, nil)
	if err != nil {
		return fmt.Errorf("add documents to %s: %w", index, err)
	}
	return nil
}

// DeleteDocument removes a single document from an index by its id.
// Deleting a catalog row does not call it.
func (idx *Indexer) DeleteDocument(index string, id uuid.UUID) error {
	_, err := idx.client.Index(index).DeleteDocument(id.String())
	if err != nil {
		return fmt.Errorf("search: delete document: %w", err)
	}
	return nil
}
