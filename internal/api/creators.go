package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/catalog"
)

// CreatorHandler serves the Creator detail route, including the
// denormalized state/replay/save listings attributed to that creator.
type CreatorHandler struct {
	creators catalog.CreatorRepository
	logger   *zap.Logger
}

func NewCreatorHandler(creators catalog.CreatorRepository, logger *zap.Logger) *CreatorHandler {
	return &CreatorHandler{creators: creators, logger: logger.Named("creator_handler")}
}

// GetByID handles GET /creators/{id}.
func (h *CreatorHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid creator id")
		return
	}

	creator, err := h.creators.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "creator", id))
		return
	}

	opts := catalog.ListOptions{Limit: 100}
	states, _, err := h.creators.GetAllStateInfo(r.Context(), id, opts)
	if err != nil {
		Err(w, wrapCatalogErr(err, "creator states", id))
		return
	}
	replays, _, err := h.creators.GetAllReplayInfo(r.Context(), id, opts)
	if err != nil {
		Err(w, wrapCatalogErr(err, "creator replays", id))
		return
	}
	saves, _, err := h.creators.GetAllSaveInfo(r.Context(), id, opts)
	if err != nil {
		Err(w, wrapCatalogErr(err, "creator saves", id))
		return
	}

	Ok(w, map[string]any{
		"creator": creator,
		"states":  states,
		"replays": replays,
		"saves":   saves,
	})
}
