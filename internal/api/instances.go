package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/clone"
	"github.com/gisst-archive/gisst/internal/metrics"
	"github.com/gisst-archive/gisst/internal/search"
)

// InstanceHandler serves the Instance detail, search-backed listing, and
// clone routes.
type InstanceHandler struct {
	instances catalog.InstanceRepository
	works     catalog.WorkRepository
	envs      catalog.EnvironmentRepository
	querier   *search.Querier
	clone     *clone.Engine
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewInstanceHandler(instances catalog.InstanceRepository, works catalog.WorkRepository, envs catalog.EnvironmentRepository, querier *search.Querier, cloneEngine *clone.Engine, m *metrics.Metrics, logger *zap.Logger) *InstanceHandler {
	return &InstanceHandler{instances: instances, works: works, envs: envs, querier: querier, clone: cloneEngine, metrics: m, logger: logger.Named("instance_handler")}
}

type instanceListItem struct {
	ID           string `json:"id"`
	WorkName     string `json:"work_name"`
	WorkVersion  string `json:"work_version"`
	WorkPlatform string `json:"work_platform"`
}

// List handles GET /instances?page_num=&limit=&contains=&platform= — served
// from the search index, not the catalog, per the base spec's one
// eventually-consistent read path.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	limit := queryInt(q, "limit", 25)
	pageNum := queryInt(q, "page_num", 0)
	contains := q.Get("contains")
	platform := q.Get("platform")

	hits, err := h.querier.SearchInstances(contains, platform, int64(limit), int64(pageNum*limit))
	if h.metrics != nil {
		h.metrics.ListingDuration.WithLabelValues("instances").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.logger.Error("instance search failed", zap.Error(err))
		Err(w, apierr.External("instance search", err))
		return
	}

	items := make([]instanceListItem, 0, len(hits))
	for _, hit := range hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		iw, err := h.instances.GetInstanceWork(r.Context(), id)
		if err != nil {
			continue
		}
		items = append(items, instanceListItem{
			ID:           iw.InstanceID.String(),
			WorkName:     iw.WorkName,
			WorkVersion:  iw.WorkVersion,
			WorkPlatform: iw.WorkPlatform,
		})
	}
	Ok(w, items)
}

// GetByID handles GET /instances/{id}.
func (h *InstanceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid instance id")
		return
	}

	instance, err := h.instances.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "instance", id))
		return
	}
	work, err := h.works.GetByID(r.Context(), instance.WorkID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "work", instance.WorkID))
		return
	}
	env, err := h.envs.GetByID(r.Context(), instance.EnvironmentID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "environment", instance.EnvironmentID))
		return
	}

	Ok(w, map[string]any{
		"instance":    instance,
		"work":        work,
		"environment": env,
	})
}

// Clone handles GET /instances/{id}/clone?state={uuid}.
func (h *InstanceHandler) Clone(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid instance id")
		return
	}
	stateID, err := uuid.Parse(r.URL.Query().Get("state"))
	if err != nil {
		ErrBadRequest(w, "invalid or missing state query parameter")
		return
	}

	start := time.Now()
	result, err := h.clone.Clone(r.Context(), instanceID, stateID)
	if h.metrics != nil {
		h.metrics.CloneDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.logger.Error("clone failed", zap.Stringer("instance_id", instanceID), zap.Stringer("state_id", stateID), zap.Error(err))
		Err(w, err)
		return
	}
	Created(w, map[string]any{"instance_id": result.NewInstanceID})
}

func queryInt(q map[string][]string, key string, def int) int {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return def
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil || n < 0 {
		return def
	}
	return n
}

// wrapCatalogErr maps a catalog.ErrNotFound into the apierr taxonomy so
// Err() can pick the right HTTP status; other catalog errors pass through
// as external (database) failures.
func wrapCatalogErr(err error, table string, id uuid.UUID) error {
	if err == catalog.ErrNotFound {
		return apierr.NotFound(table+" "+id.String(), err)
	}
	return apierr.External("catalog lookup", err)
}
