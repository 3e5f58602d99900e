package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"continuity.org/internal/analytics"
	"continuity.org/internal/bia"
	"continuity.org/internal/department"
	"continuity.org/internal/identity"
	"continuity.org/internal/notify"
	"continuity.org/internal/obs"
)

const serviceName = "continuity-api"

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// SessionSource turns bearer tokens into sessions and rotates expired ones.
type SessionSource interface {
	GetSession(ctx context.Context, accessToken string) (*identity.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error)
}

// Deps wires the API to the domain services. Nil services disable their routes.
type Deps struct {
	Sessions    SessionSource
	Identity    *identity.Manager
	BIA         *bia.Service
	Analytics   *analytics.Service
	Departments *department.Loader
	Hub         *notify.Hub
	Ready       readinessChecker
	Version     string
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	sessions    SessionSource
	identity    *identity.Manager
	bia         *bia.Service
	analytics   *analytics.Service
	departments *department.Loader
	hub         *notify.Hub
	readyProbe  readinessChecker
	version     string

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(d Deps) *API {
	a := &API{
		mux:         http.NewServeMux(),
		sessions:    d.Sessions,
		identity:    d.Identity,
		bia:         d.BIA,
		analytics:   d.Analytics,
		departments: d.Departments,
		hub:         d.Hub,
		readyProbe:  d.Ready,
		version:     d.Version,
		rateBurst:   40,
		ratePerSec:  20,
		maxBody:     1 << 20,
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// session and navigation
	a.mux.HandleFunc("GET /v1/session", a.Session)
	a.mux.HandleFunc("POST /v1/session/signout", a.SignOut)
	a.mux.HandleFunc("POST /v1/session/events", a.SessionEvent)
	a.mux.HandleFunc("GET /v1/navigation", a.Navigation)

	// business impact analysis
	a.mux.HandleFunc("GET /v1/bia/catalogue", a.Catalogue)
	a.mux.HandleFunc("GET /v1/bia/templates", a.ListTemplates)
	a.mux.HandleFunc("POST /v1/bia/templates/{name}", a.LoadTemplate)
	a.mux.HandleFunc("GET /v1/bia/processes", a.ListProcesses)
	a.mux.HandleFunc("POST /v1/bia/processes", a.CreateProcess)
	a.mux.HandleFunc("GET /v1/bia/processes/{id}", a.GetProcess)
	a.mux.HandleFunc("PUT /v1/bia/processes/{id}", a.UpdateProcess)
	a.mux.HandleFunc("DELETE /v1/bia/processes/{id}", a.DeleteProcess)
	a.mux.HandleFunc("POST /v1/bia/processes/{id}/save", a.SaveProcess)
	a.mux.HandleFunc("PUT /v1/bia/processes/{id}/answers", a.SetAnswers)
	a.mux.HandleFunc("PUT /v1/bia/processes/{id}/recovery", a.SetRecovery)
	a.mux.HandleFunc("GET /v1/bia/processes/{id}/costs", a.Costs)
	a.mux.HandleFunc("GET /v1/bia/processes/{id}/scenario", a.Scenario)
	a.mux.HandleFunc("DELETE /v1/bia/workspace", a.DiscardWorkspace)

	// analytics and department questionnaires
	a.mux.HandleFunc("GET /v1/analytics/{name}", a.Analysis)
	a.mux.HandleFunc("GET /v1/dashboard", a.Dashboard)
	a.mux.HandleFunc("GET /v1/department-assessments", a.DepartmentAssessments)

	a.mux.HandleFunc("GET /v1/notifications/stream", a.Stream)

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
