// Package web exposes the simulation engine over HTTP: simulation and
// comparison runs, network analysis, exports and a status event stream.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mettamodeler/mettasim/pkg/analysis"
	"github.com/mettamodeler/mettasim/pkg/compare"
	"github.com/mettamodeler/mettasim/pkg/export"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"github.com/mettamodeler/mettasim/pkg/pubsub"
	"github.com/mettamodeler/mettasim/pkg/schema"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher
}

// NewServer creates a new web server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// simulation_status: keep a short history, replay only the current
	// state to new subscribers
	ssePublisher.ConfigureTopic(pubsub.TopicSimulationStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoint
	s.router.HandleFunc("/api/subscribe/simulation_status", s.handleSubscribeStatus).Methods("GET")

	// API routes
	s.router.HandleFunc("/api/simulate", s.handleSimulate).Methods("POST")
	s.router.HandleFunc("/api/compare", s.handleCompare).Methods("POST")
	s.router.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST")
	s.router.HandleFunc("/api/export/notebook", s.handleExportNotebook).Methods("POST")
	s.router.HandleFunc("/api/export/csv", s.handleExportCSV).Methods("POST")
	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the request-id and CORS middleware.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(corsMiddleware(s.router))
}

// corsMiddleware allows any origin. The middleware sits outside the router
// so preflight requests never hit the per-route method matchers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PublishStatus mirrors run lifecycle onto the SSE topic. Publish failures
// never affect the request that triggered them.
func (s *Server) PublishStatus(ctx context.Context, state, message string, summary *pubsub.RunSummary) {
	status := pubsub.SimulationStatus{
		State:     state,
		Message:   message,
		RequestID: logging.GetRequestID(ctx),
		Summary:   summary,
	}
	if err := s.publisher.Publish(pubsub.TopicSimulationStatus, state, status); err != nil {
		logging.WarnContext(ctx, "failed to publish simulation status", "error", err)
	}
}

func (s *Server) handleSubscribeStatus(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicSimulationStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	// Stream events
	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.ErrorContext(r.Context(), "error writing SSE event", "error", err)
			return
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseRequest(r)
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}
	g, err := req.Graph()
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}

	if req.CompareToBaseline {
		s.PublishStatus(ctx, "running", "baseline comparison started", nil)
		resp, err := runCombined(ctx, req, g)
		if err != nil {
			s.PublishStatus(ctx, "failed", err.Error(), nil)
			writeError(w, r, err, "Simulation failed")
			return
		}
		s.PublishStatus(ctx, "completed", "baseline comparison finished", &pubsub.RunSummary{
			Iterations: resp["iterations"].(int),
			Converged:  resp["converged"].(bool),
			Nodes:      g.NodeCount(),
			Comparison: true,
		})
		writeJSON(w, http.StatusOK, resp)
		return
	}

	opts, err := req.SimOptions()
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}
	simulator, err := sim.New(g, opts)
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}

	s.PublishStatus(ctx, "running", "simulation started", nil)
	result, err := simulator.Run(ctx)
	if err != nil {
		s.PublishStatus(ctx, "failed", err.Error(), nil)
		writeError(w, r, err, "Simulation failed")
		return
	}
	s.PublishStatus(ctx, "completed", "simulation finished", &pubsub.RunSummary{
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Nodes:      g.NodeCount(),
	})

	if !req.GenerateNotebook {
		writeJSON(w, http.StatusOK, result)
		return
	}

	notebook, err := renderNotebook(g, result)
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}
	resp, err := withNotebook(result, notebook)
	if err != nil {
		writeError(w, r, err, "Simulation failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// runCombined reproduces the combined baseline/scenario response shape:
// scenario results at the top level, baseline results under baseline*
// keys, plain per-node deltas and the impact classification.
func runCombined(ctx context.Context, req *schema.SimulationRequest, g *model.Graph) (map[string]any, error) {
	opts, err := req.CompareOptions()
	if err != nil {
		return nil, err
	}

	baseSim, err := sim.New(g, sim.Options{
		Activation:    opts.Activation,
		Threshold:     opts.Threshold,
		MaxIterations: opts.MaxIterations,
		InitialValues: opts.BaselineInitial,
	})
	if err != nil {
		return nil, err
	}
	// Clamps apply to the scenario run only
	scenSim, err := sim.New(g, sim.Options{
		Activation:    opts.Activation,
		Threshold:     opts.Threshold,
		MaxIterations: opts.MaxIterations,
		InitialValues: opts.ScenarioInitial,
		ClampedNodes:  opts.ClampedNodes,
		ClampedValues: opts.ClampedValues,
	})
	if err != nil {
		return nil, err
	}

	baseRes, err := baseSim.Run(ctx)
	if err != nil {
		return nil, err
	}
	scenRes, err := scenSim.Run(ctx)
	if err != nil {
		return nil, err
	}

	deltaState := make(map[string]float64, len(baseRes.FinalState))
	for id, b := range baseRes.FinalState {
		if sn, ok := scenRes.FinalState[id]; ok {
			deltaState[id] = sn.Value - b.Value
		}
	}

	resp := map[string]any{
		// Standard scenario results
		"finalState":    scenRes.FinalState,
		"timeSeries":    scenRes.TimeSeries,
		"iterations":    scenRes.Iterations,
		"converged":     scenRes.Converged,
		"initialValues": scenRes.InitialValues,
		"clampedNodes":  scenRes.ClampedNodes,

		// Baseline and comparison data
		"baselineFinalState": baseRes.FinalState,
		"baselineTimeSeries": baseRes.TimeSeries,
		"baselineIterations": baseRes.Iterations,
		"baselineConverged":  baseRes.Converged,

		"deltaState":    deltaState,
		"impactMetrics": compare.Analyze(baseRes, scenRes),
	}

	if req.GenerateNotebook {
		notebook, err := renderNotebook(g, scenRes)
		if err != nil {
			return nil, err
		}
		resp["notebook"] = notebook
	}
	return resp, nil
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseRequest(r)
	if err != nil {
		writeError(w, r, err, "Comparison failed")
		return
	}
	g, err := req.Graph()
	if err != nil {
		writeError(w, r, err, "Comparison failed")
		return
	}
	opts, err := req.CompareOptions()
	if err != nil {
		writeError(w, r, err, "Comparison failed")
		return
	}

	s.PublishStatus(ctx, "running", "comparison started", nil)
	cmp, err := compare.Run(ctx, g, opts)
	if err != nil {
		s.PublishStatus(ctx, "failed", err.Error(), nil)
		writeError(w, r, err, "Comparison failed")
		return
	}
	s.PublishStatus(ctx, "completed", "comparison finished", &pubsub.RunSummary{
		Iterations: cmp.Iterations,
		Converged:  cmp.Converged,
		Nodes:      g.NodeCount(),
		Comparison: true,
	})

	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, r, err, "Analysis failed")
		return
	}
	g, err := req.Graph()
	if err != nil {
		writeError(w, r, err, "Analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, analysis.Analyze(g))
}

// exportRequest is the payload for the export endpoints: arbitrary result
// data plus the export type it represents.
type exportRequest struct {
	Data json.RawMessage `json:"data"`
	Type string          `json:"type"`
}

func (s *Server) handleExportNotebook(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err, "Export failed")
		return
	}

	nb, err := export.NewNotebook(req.Type, req.Data)
	if err != nil {
		writeError(w, r, err, "Export failed")
		return
	}
	raw, err := nb.Bytes()
	if err != nil {
		writeError(w, r, err, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-ipynb+json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_export.ipynb", req.Type))
	w.Write(raw)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err, "Export failed")
		return
	}

	var (
		raw []byte
		err error
	)
	switch req.Type {
	case "", "simulation", export.TypeModel, export.TypeScenario:
		var result sim.Result
		if jsonErr := json.Unmarshal(req.Data, &result); jsonErr != nil {
			writeError(w, r, model.Invalidf("csv export needs a simulation result: %v", jsonErr), "Export failed")
			return
		}
		raw, err = export.TimeSeriesCSV(&result)
	case export.TypeComparison:
		var cmp compare.Comparison
		if jsonErr := json.Unmarshal(req.Data, &cmp); jsonErr != nil {
			writeError(w, r, model.Invalidf("csv export needs a comparison result: %v", jsonErr), "Export failed")
			return
		}
		raw, err = export.ComparisonCSV(&cmp)
	default:
		writeError(w, r, model.Invalidf("unknown export type %q", req.Type), "Export failed")
		return
	}
	if err != nil {
		writeError(w, r, err, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=simulation_export.csv")
	w.Write(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseRequest reads and parses a simulation request body
func parseRequest(r *http.Request) (*schema.SimulationRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, model.Invalidf("failed to read request body: %v", err)
	}
	return schema.Parse(body)
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return model.Invalidf("failed to read request body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return model.Invalidf("malformed request body: %v", err)
	}
	return nil
}

// renderNotebook builds the analysis notebook and returns it as the JSON
// string embedded in simulation responses.
func renderNotebook(g *model.Graph, result *sim.Result) (string, error) {
	nb, err := export.SimulationNotebook(g, result)
	if err != nil {
		return "", err
	}
	raw, err := nb.Bytes()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// withNotebook grafts the rendered notebook onto a result payload.
func withNotebook(v any, notebook string) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["notebook"] = notebook
	return m, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto the wire error shape {error, message}.
// Invalid input is the caller's fault; everything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, title string) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		title = "Invalid input"
	}
	logging.ErrorContext(r.Context(), "request failed", "error", err, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   title,
		"message": err.Error(),
	})
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.Handler())
}

// Close shuts down the SSE publisher
func (s *Server) Close() error {
	return s.publisher.Close()
}
