package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/pkg/flowengine"
	"github.com/flowengine/flowengine/pkg/validation"
)

// api exposes the runtime over HTTP.
type api struct {
	rt     *flowengine.Runtime
	store  record.Store
	logger *zap.Logger
}

func newAPI(rt *flowengine.Runtime, store record.Store, logger *zap.Logger) *api {
	return &api{rt: rt, store: store, logger: logger.Named("api")}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /flows", a.saveFlow)
	mux.HandleFunc("GET /flows", a.listFlows)
	mux.HandleFunc("GET /flows/{id}", a.getFlow)
	mux.HandleFunc("DELETE /flows/{id}", a.deleteFlow)

	mux.HandleFunc("POST /runs", a.startRun)
	mux.HandleFunc("GET /runs", a.listRuns)
	mux.HandleFunc("GET /runs/{id}", a.getRun)
	mux.HandleFunc("POST /runs/{id}/cancel", a.cancelRun)
	mux.HandleFunc("GET /runs/{id}/events", a.streamEvents)
	mux.HandleFunc("GET /runs/{id}/results", a.getResults)

	mux.HandleFunc("GET /history/runs", a.historyRuns)
	mux.HandleFunc("GET /history/builds", a.historyBuilds)
}

// runRequest is the POST /runs body: either an inline flow payload or a
// reference to a stored flow, plus run options.
type runRequest struct {
	Flow   *graph.Payload `json:"flow,omitempty"`
	FlowID string         `json:"flow_id,omitempty"`
	Config dto.RunConfig  `json:"config"`
}

type runResponse struct {
	RunID  string           `json:"run_id"`
	FlowID string           `json:"flow_id"`
	Status record.RunStatus `json:"status"`
	Layers [][]string       `json:"layers"`
}

func (a *api) saveFlow(w http.ResponseWriter, r *http.Request) {
	var payload graph.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, err)
		return
	}
	if err := validation.ValidatePayload(&payload); err != nil {
		a.error(w, http.StatusUnprocessableEntity, err)
		return
	}
	f, err := payload.Flow()
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := a.rt.SaveFlow(r.Context(), f); err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"id": f.ID})
}

func (a *api) listFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := a.rt.ListFlows(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	ids := make([]string, 0, len(flows))
	for _, f := range flows {
		ids = append(ids, f.ID)
	}
	a.json(w, http.StatusOK, map[string]interface{}{"flows": ids})
}

func (a *api) getFlow(w http.ResponseWriter, r *http.Request) {
	f, err := a.rt.GetFlow(r.Context(), r.PathValue("id"))
	if errors.Is(err, graph.ErrFlowNotFound) {
		a.error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	a.json(w, http.StatusOK, f)
}

func (a *api) deleteFlow(w http.ResponseWriter, r *http.Request) {
	err := a.rt.DeleteFlow(r.Context(), r.PathValue("id"))
	if errors.Is(err, graph.ErrFlowNotFound) {
		a.error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, err)
		return
	}

	// Runs outlive the request; detach from the request context.
	var (
		run *flowengine.Run
		err error
	)
	switch {
	case req.Flow != nil:
		run, err = a.rt.StartFromPayload(context.Background(), req.Flow, req.Config)
	case req.FlowID != "":
		run, err = a.rt.StartStored(context.Background(), req.FlowID, req.Config)
	default:
		a.error(w, http.StatusBadRequest, fmt.Errorf("one of flow or flow_id is required"))
		return
	}
	if errors.Is(err, graph.ErrFlowNotFound) {
		a.error(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, err)
		return
	}

	a.logger.Info("run accepted",
		zap.String("run_id", run.ID()),
		zap.String("flow_id", run.FlowID()))
	a.json(w, http.StatusAccepted, runResponse{
		RunID:  run.ID(),
		FlowID: run.FlowID(),
		Status: run.Status(),
		Layers: run.Layers(),
	})
}

func (a *api) listRuns(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]interface{}{"runs": a.rt.Runs()})
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := a.rt.Run(r.PathValue("id"))
	if !ok {
		a.error(w, http.StatusNotFound, dto.ErrRunNotFound)
		return
	}
	resp := map[string]interface{}{
		"run_id":  run.ID(),
		"flow_id": run.FlowID(),
		"status":  run.Status(),
	}
	if summary := run.Summary(); summary != nil {
		resp["summary"] = summary
	}
	a.json(w, http.StatusOK, resp)
}

func (a *api) cancelRun(w http.ResponseWriter, r *http.Request) {
	run, ok := a.rt.Run(r.PathValue("id"))
	if !ok {
		a.error(w, http.StatusNotFound, dto.ErrRunNotFound)
		return
	}
	if run.Status().Terminal() {
		a.error(w, http.StatusConflict, dto.ErrRunFinished)
		return
	}
	run.Cancel()
	a.json(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// streamEvents replays the run's event feed as server-sent events until
// the run finishes or the client disconnects.
func (a *api) streamEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := a.rt.Run(r.PathValue("id"))
	if !ok {
		a.error(w, http.StatusNotFound, dto.ErrRunNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	events, unsubscribe := run.Subscribe(r.Context())
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, data)
		flusher.Flush()
	}
}

func (a *api) getResults(w http.ResponseWriter, r *http.Request) {
	run, ok := a.rt.Run(r.PathValue("id"))
	if !ok {
		a.error(w, http.StatusNotFound, dto.ErrRunNotFound)
		return
	}
	if !run.Status().Terminal() {
		a.error(w, http.StatusConflict, fmt.Errorf("run %s still in progress", run.ID()))
		return
	}
	a.json(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.ID(),
		"summary": run.Summary(),
	})
}

func (a *api) historyRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, err)
		return
	}
	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	a.json(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *api) historyBuilds(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, err)
		return
	}
	builds, err := a.store.ListVertexBuilds(r.Context(), filter)
	if err != nil {
		a.error(w, http.StatusInternalServerError, err)
		return
	}
	a.json(w, http.StatusOK, map[string]interface{}{"builds": builds})
}

func parseFilter(r *http.Request) (record.Filter, error) {
	q := r.URL.Query()
	filter := record.Filter{
		FlowID:   q.Get("flow_id"),
		RunID:    q.Get("run_id"),
		VertexID: q.Get("vertex_id"),
	}
	var err error
	if filter.Limit, err = intQuery(q.Get("limit")); err != nil {
		return filter, err
	}
	if filter.Offset, err = intQuery(q.Get("offset")); err != nil {
		return filter, err
	}
	if filter.Since, err = timeQuery(q.Get("since")); err != nil {
		return filter, err
	}
	if filter.Before, err = timeQuery(q.Get("before")); err != nil {
		return filter, err
	}
	return filter, filter.Validate()
}

func intQuery(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func timeQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *api) json(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("write response", zap.Error(err))
	}
}

func (a *api) error(w http.ResponseWriter, status int, err error) {
	a.json(w, status, map[string]string{"error": err.Error()})
}
