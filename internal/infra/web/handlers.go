package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"multitalk-demo/internal/domain"
	"multitalk-demo/internal/domain/model"
	"multitalk-demo/internal/domain/ports/adapter"
	"multitalk-demo/internal/infra/logging"
	"multitalk-demo/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
)

// The expected JSON request body for submitting a generation job.
type admitRequest struct {
	Kind       string   `json:"job_type"` // "single" | "multi"
	SessionID  string   `json:"user_session"`
	Prompt     string   `json:"prompt"`
	ImagePath  string   `json:"image_path"`
	AudioPaths []string `json:"audio_paths"`
	AudioType  string   `json:"audio_type"`

	SamplingSteps   int     `json:"sampling_steps"`
	TextGuideScale  float64 `json:"text_guide_scale"`
	AudioGuideScale float64 `json:"audio_guide_scale"`
	FrameNum        int     `json:"frame_num"`
	Seed            int64   `json:"seed"`
}

type admitResponse struct {
	JobID             string  `json:"job_id"`
	Position          int     `json:"position"`
	EstimatedWaitTime float64 `json:"estimated_wait_time"`
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	kind := model.JobKind(req.Kind)
	if kind != model.JobKindSingle && kind != model.JobKindMulti {
		badRequest(w, "job_type must be \"single\" or \"multi\"")
		return
	}
	if req.Prompt == "" {
		badRequest(w, "prompt is required")
		return
	}
	if req.ImagePath == "" {
		badRequest(w, "image_path is required")
		return
	}
	if len(req.AudioPaths) == 0 {
		badRequest(w, "at least one audio path is required")
		return
	}

	// External admission cap: the queue itself never rejects, the API does.
	if max := s.cfg.Queue.MaxQueueSize; max > 0 {
		if view := s.qm.GetStatus(); view.QueueLength >= max {
			metrics.IncJobRejected()
			http.Error(w, domain.ErrQueueFull.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	genReq := s.buildGenerationRequest(kind, &req)
	// Admission and parameter registration happen under one runner lock so
	// the worker can never pull the job before its parameters exist.
	jobID := s.runner.Submit(kind, req.SessionID, genReq)

	position, _ := s.qm.Position(jobID)
	view := s.qm.GetStatus()

	ctx := logging.WithJobID(r.Context(), jobID)
	if req.SessionID != "" {
		ctx = logging.WithSessID(ctx, req.SessionID)
	}
	logging.With(ctx, s.log).Info().Int("position", position).Msg("job accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(admitResponse{
		JobID:             jobID,
		Position:          position,
		EstimatedWaitTime: view.EstimatedWaitTime,
	})
}

// buildGenerationRequest applies the configured defaults and limits to the
// caller's parameters.
func (s *Server) buildGenerationRequest(kind model.JobKind, req *admitRequest) adapter.GenerationRequest {
	g := s.cfg.Generator

	steps := req.SamplingSteps
	if steps == 0 {
		steps = g.DefaultSamplingSteps
	}
	steps = clampInt(steps, g.MinSamplingSteps, g.MaxSamplingSteps)

	textScale := req.TextGuideScale
	if textScale == 0 {
		textScale = g.DefaultTextScale
	}
	textScale = clampFloat(textScale, g.MinGuideScale, g.MaxGuideScale)

	audioScale := req.AudioGuideScale
	if audioScale == 0 {
		audioScale = g.DefaultAudioScale
	}
	audioScale = clampFloat(audioScale, g.MinGuideScale, g.MaxGuideScale)

	frames := req.FrameNum
	if frames == 0 {
		frames = g.DefaultFrameNum
	}
	frames = clampInt(frames, g.DefaultFrameNum, g.MaxFrameNum)

	seed := req.Seed
	if seed == 0 {
		seed = g.DefaultSeed
	}

	return adapter.GenerationRequest{
		Kind:            kind,
		Prompt:          req.Prompt,
		ImagePath:       req.ImagePath,
		AudioPaths:      req.AudioPaths,
		AudioType:       req.AudioType,
		SamplingSteps:   steps,
		TextGuideScale:  textScale,
		AudioGuideScale: audioScale,
		FrameNum:        frames,
		Seed:            seed,
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, ok := s.qm.Get(jobID)
	if !ok {
		// Might already be retired; check history so a finished job still
		// answers instead of 404ing the UI that just watched it complete.
		for _, h := range s.qm.History() {
			if h.ID == jobID {
				job, ok = h, true
				break
			}
		}
	}
	if !ok {
		http.Error(w, domain.ErrNotFound.Error(), http.StatusNotFound)
		return
	}

	position, queued := s.qm.Position(jobID)
	response := struct {
		model.JobRecord
		Position int `json:"position,omitempty"`
	}{JobRecord: job}
	if queued {
		response.Position = position
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	view := s.qm.GetStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(view)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		if id, ok := s.qm.ActiveJobID(); ok {
			jobID = id
		}
	}
	snap := s.tracker.GetProgressInfo(jobID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	lines := s.tracker.RecentLogs(limit)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		Lines []string `json:"lines"`
	}{Lines: lines})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	views := s.agg.Latest()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(views)
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, fmt.Sprintf("%s: %s", domain.ErrInvalidArgument, msg), http.StatusBadRequest)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
