package api

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/catalog"
)

// citationTemplate renders the human-facing manifest page. It is the one
// piece of HTML the Delivery API owns directly — everything else is
// JavaScript front-end territory, out of scope per the base spec.
var citationTemplate = template.Must(template.New("citation").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.CitationData.WebsiteTitle}}</title></head>
<body>
<h1>{{.Work.Name}} {{.Work.Version}}</h1>
<p>Environment: {{.Environment.Name}} ({{.Environment.CoreName}})</p>
<p><a href="{{.CitationData.URL}}">{{.CitationData.URL}}</a></p>
<p>Published: {{.CitationData.PublishedYear}}</p>
</body>
</html>`))

// SaveLink, ObjectLinkView, StateLink, and ReplayLink are the manifest's
// wire shapes, naming only what the player's JavaScript needs to resolve
// a byte-serving URL — not the full catalog row.
type SaveLink struct {
	ID        string `json:"id"`
	ShortDesc string `json:"short_desc"`
}

type ObjectLinkView struct {
	ObjectID  string `json:"object_id"`
	Role      string `json:"role"`
	RoleIndex int    `json:"role_index"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
}

type StateLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ReplayLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type citationData struct {
	WebsiteTitle  string `json:"website_title"`
	URL           string `json:"url"`
	ViewDate      string `json:"view_date"`
	PublishedYear int    `json:"published_year"`
}

// PlayerManifest is the payload returned by GET /data/{instance_id}.
type PlayerManifest struct {
	GisstRoot     string             `json:"gisst_root"`
	Instance      *catalog.Instance  `json:"instance"`
	Work          *catalog.Work      `json:"work"`
	Environment   *catalog.Environment `json:"environment"`
	Saves         []SaveLink         `json:"saves"`
	StartState    *StateLink         `json:"start_state,omitempty"`
	StartReplay   *ReplayLink        `json:"start_replay,omitempty"`
	Manifest      []ObjectLinkView   `json:"manifest"`
	HostURL       string             `json:"host_url"`
	HostProtocol  string             `json:"host_protocol"`
	CitationData  citationData       `json:"citation_data"`
}

// DataHandler serves the player manifest and player page.
type DataHandler struct {
	instances   catalog.InstanceRepository
	works       catalog.WorkRepository
	envs        catalog.EnvironmentRepository
	objectLinks catalog.ObjectLinkRepository
	states      catalog.StateRepository
	replays     catalog.ReplayRepository
	saves       catalog.SaveRepository
	baseURL     string
	logger      *zap.Logger
}

func NewDataHandler(instances catalog.InstanceRepository, works catalog.WorkRepository, envs catalog.EnvironmentRepository, objectLinks catalog.ObjectLinkRepository, states catalog.StateRepository, replays catalog.ReplayRepository, saves catalog.SaveRepository, baseURL string, logger *zap.Logger) *DataHandler {
	return &DataHandler{
		instances: instances, works: works, envs: envs, objectLinks: objectLinks,
		states: states, replays: replays, saves: saves, baseURL: baseURL,
		logger: logger.Named("data_handler"),
	}
}

// setIsolationHeaders sets the CORS/COOP/COEP/CORP header triple required
// to host the cross-origin-isolated emulator front-end, per §4.G/§6. json
// selects the "cross-origin" CORP variant the JSON response needs for
// client-side fetch() instead of the HTML navigation's "same-origin".
func setIsolationHeaders(w http.ResponseWriter, json bool) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	if json {
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
	} else {
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
	}
}

// Manifest handles GET /data/{instance_id}?state=&replay=&save=….
func (h *DataHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		ErrBadRequest(w, "invalid instance id")
		return
	}

	ctx := r.Context()
	instance, err := h.instances.GetByID(ctx, instanceID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "instance", instanceID))
		return
	}
	work, err := h.works.GetByID(ctx, instance.WorkID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "work", instance.WorkID))
		return
	}
	env, err := h.envs.GetByID(ctx, instance.EnvironmentID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "environment", instance.EnvironmentID))
		return
	}

	links, err := h.objectLinks.GetAllForInstanceID(ctx, instanceID)
	if err != nil {
		Err(w, apierr.External("object link lookup", err))
		return
	}
	manifest := make([]ObjectLinkView, 0, len(links))
	for _, l := range links {
		manifest = append(manifest, ObjectLinkView{
			ObjectID:  l.ObjectID.String(),
			Role:      string(l.Role),
			RoleIndex: l.RoleIndex,
			URL:       h.baseURL + "/objects/" + l.ObjectID.String(),
			Filename:  l.FileName,
		})
	}

	saveRows, _, err := h.instances.GetAllSaves(ctx, instanceID, nil, catalog.ListOptions{Limit: 100})
	if err != nil {
		Err(w, apierr.External("saves lookup", err))
		return
	}
	saves := make([]SaveLink, 0, len(saveRows))
	for _, s := range saveRows {
		saves = append(saves, SaveLink{ID: s.ID.String(), ShortDesc: s.ShortDesc})
	}

	manifestResp := PlayerManifest{
		GisstRoot:    h.baseURL,
		Instance:     instance,
		Work:         work,
		Environment:  env,
		Saves:        saves,
		Manifest:     manifest,
		HostURL:      h.baseURL,
		HostProtocol: schemeOf(h.baseURL),
		CitationData: citationData{
			WebsiteTitle:  work.Name,
			URL:           h.baseURL + "/play/" + instanceID.String(),
			ViewDate:      time.Now().UTC().Format(time.RFC3339),
			PublishedYear: work.CreatedAt.Year(),
		},
	}

	if stateParam := r.URL.Query().Get("state"); stateParam != "" {
		stateID, err := uuid.Parse(stateParam)
		if err != nil {
			ErrBadRequest(w, "invalid state id")
			return
		}
		state, err := h.states.GetByID(ctx, stateID)
		if err != nil {
			Err(w, wrapCatalogErr(err, "state", stateID))
			return
		}
		manifestResp.StartState = &StateLink{ID: state.ID.String(), URL: h.baseURL + "/objects/" + state.FileID.String()}
	} else if replayParam := r.URL.Query().Get("replay"); replayParam != "" {
		replayID, err := uuid.Parse(replayParam)
		if err != nil {
			ErrBadRequest(w, "invalid replay id")
			return
		}
		replay, err := h.replays.GetByID(ctx, replayID)
		if err != nil {
			Err(w, wrapCatalogErr(err, "replay", replayID))
			return
		}
		manifestResp.StartReplay = &ReplayLink{ID: replay.ID.String(), URL: h.baseURL + "/objects/" + replay.FileID.String()}
	}

	accept := r.Header.Get("Accept")
	wantsJSON := strings.Contains(accept, "application/json")
	setIsolationHeaders(w, wantsJSON)
	if wantsJSON {
		Ok(w, manifestResp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := citationTemplate.Execute(w, manifestResp); err != nil {
		h.logger.Error("citation template render failed", zap.Error(err))
	}
}

// Play handles GET /play/{instance_id}: the player page shell. The actual
// player JavaScript front-end is out of scope; this serves a minimal
// placeholder element carrying the instance id, with no script that fetches
// the manifest.
func (h *DataHandler) Play(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instance_id")
	if _, err := uuid.Parse(instanceID); err != nil {
		ErrBadRequest(w, "invalid instance id")
		return
	}
	setIsolationHeaders(w, false)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>GISST Player</title></head><body><div id="gisst-player" data-instance-id="` + instanceID + `"></div></body></html>`))
}

func schemeOf(baseURL string) string {
	if strings.HasPrefix(baseURL, "https://") {
		return "https"
	}
	return "http"
}
