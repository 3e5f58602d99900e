package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"continuity.org/internal/bia"
	"continuity.org/internal/identity"
)

type processResponse struct {
	bia.Record
	Answers bia.Answers `json:"answers,omitempty"`
	Missing []string    `json:"missing"`
}

type answersRequest struct {
	Answers bia.Answers `json:"answers"`
}

type answersResponse struct {
	Process bia.BusinessProcess `json:"process"`
	Scores  bia.ImpactScores    `json:"scores"`
	Missing []string            `json:"missing"`
}

type recoveryRequest struct {
	Responses []bia.RecoveryResponse `json:"responses"`
}

type recoveryResponse struct {
	Process bia.BusinessProcess `json:"process"`
	Metrics bia.RecoveryMetrics `json:"metrics"`
}

// workspace returns the caller's organization workspace. Writers must manage
// the continuity program.
func (a *API) workspace(ctx context.Context, write bool) (*bia.Workspace, identity.OrganizationMember, error) {
	if a.bia == nil {
		return nil, identity.OrganizationMember{}, fmt.Errorf("%w: business impact analysis", errDisabled)
	}
	guard := member
	if write {
		guard = manager
	}
	m, err := guard(ctx)
	if err != nil {
		return nil, m, err
	}
	ws, err := a.bia.Workspace(ctx, m.OrganizationID)
	if err != nil {
		return nil, m, err
	}
	return ws, m, nil
}

func processView(ws *bia.Workspace, rec bia.Record) processResponse {
	id := rec.Process.ID
	missing := ws.Missing(id)
	if missing == nil {
		missing = []string{}
	}
	answers := ws.Answers(id)
	if len(answers) == 0 {
		answers = nil
	}
	return processResponse{Record: rec, Answers: answers, Missing: missing}
}

func (a *API) Catalogue(w http.ResponseWriter, r *http.Request) {
	if _, err := member(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bia.DefaultCatalogue())
}

func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if _, err := member(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": bia.TemplateNames()})
}

func (a *API) LoadTemplate(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	name := r.PathValue("name")
	added, err := ws.LoadTemplate(name)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	auditEvent(r.Context(), "bia.template_loaded", map[string]any{"template": name, "processes": len(added)})
	writeJSON(w, http.StatusCreated, map[string]any{"processes": added})
}

func (a *API) ListProcesses(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), false)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	records := ws.List()
	out := make([]processResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, processView(ws, rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"processes": out})
}

func (a *API) CreateProcess(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var p bia.BusinessProcess
	if err := decodeJSON(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	added, err := ws.Add(p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rec, err := ws.Get(added.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, processView(ws, rec))
}

func (a *API) GetProcess(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), false)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rec, err := ws.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processView(ws, rec))
}

func (a *API) UpdateProcess(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var p bia.BusinessProcess
	if err := decodeJSON(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	if _, err := ws.Update(id, p); err != nil {
		respondErr(w, r, err)
		return
	}
	rec, err := ws.Get(id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processView(ws, rec))
}

func (a *API) DeleteProcess(w http.ResponseWriter, r *http.Request) {
	_, m, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := a.bia.Delete(r.Context(), m.OrganizationID, id); err != nil {
		respondErr(w, r, err)
		return
	}
	auditEvent(r.Context(), "bia.process_deleted", map[string]any{"process_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// SaveProcess persists a process; with ?complete=true every impact question
// must be answered first.
func (a *API) SaveProcess(w http.ResponseWriter, r *http.Request) {
	ws, m, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	save := a.bia.Save
	if complete, _ := strconv.ParseBool(r.URL.Query().Get("complete")); complete {
		save = a.bia.Complete
	}
	saved, err := save(r.Context(), m.OrganizationID, id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	auditEvent(r.Context(), "bia.process_saved", map[string]any{"process_id": saved.ID, "name": saved.Name})
	rec, err := ws.Get(saved.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processView(ws, rec))
}

func (a *API) SetAnswers(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req answersRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	p, scores, err := ws.SetAnswers(id, req.Answers)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	missing := ws.Missing(id)
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, answersResponse{Process: p, Scores: scores, Missing: missing})
}

func (a *API) SetRecovery(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req recoveryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	p, metrics, err := ws.SetRecoveryResponses(r.PathValue("id"), req.Responses)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recoveryResponse{Process: p, Metrics: metrics})
}

func (a *API) Costs(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), false)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rec, err := ws.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bia.CalculateCosts(rec.Process))
}

func (a *API) Scenario(w http.ResponseWriter, r *http.Request) {
	ws, _, err := a.workspace(r.Context(), false)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("hours"))
	if raw == "" {
		respondErr(w, r, badRequest("hours is required"))
		return
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) {
		respondErr(w, r, badRequest("hours must be a finite number"))
		return
	}
	rec, err := ws.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bia.ProjectDowntime(rec.Process, hours))
}

func (a *API) DiscardWorkspace(w http.ResponseWriter, r *http.Request) {
	_, m, err := a.workspace(r.Context(), true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := a.bia.Discard(r.Context(), m.OrganizationID); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
