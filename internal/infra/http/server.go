// Package http serves the operations endpoint: health, metrics and a
// read-only view of jobs, videos and transcripts.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/usecase"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	queryUC usecase.QueryUseCase
	db      Pinger
	log     *zerolog.Logger

	mu     sync.Mutex
	server *http.Server
}

func NewServer(queryUC usecase.QueryUseCase, db Pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "OpsServer").Logger()
	return &Server{queryUC: queryUC, db: db, log: &l}
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/videos", s.handleJobVideos)
		r.Get("/videos/{id}", s.handleVideo)
		r.Get("/videos/{id}/transcript", s.handleTranscript)
	})
	return r
}

// Start listens on port until Shutdown is called.
func (s *Server) Start(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	s.log.Info().Int("port", port).Msg("ops server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queryUC.QueueStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": counts})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	v, err := s.queryUC.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(v))
}

func (s *Server) handleJobVideos(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := s.queryUC.GetJob(r.Context(), jobID); err != nil {
		s.writeError(w, err)
		return
	}
	videos, err := s.queryUC.ListVideos(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]videoDTO, 0, len(videos))
	for _, v := range videos {
		items = append(items, toVideoDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.queryUC.GetVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTO(v))
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryUC.GetTranscript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranscriptDTO(t))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type jobDTO struct {
	ID           string                    `json:"id"`
	Kind         model.JobKind             `json:"kind"`
	SourceURL    string                    `json:"source_url"`
	Status       model.JobStatus           `json:"status"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	ExpandedAt   *time.Time                `json:"expanded_at,omitempty"`
	Videos       map[model.VideoStatus]int `json:"videos"`
	Total        int                       `json:"total"`
	Done         bool                      `json:"done"`
}

func toJobDTO(v *usecase.JobView) jobDTO {
	return jobDTO{
		ID:           v.Job.ID,
		Kind:         v.Job.Kind,
		SourceURL:    v.Job.SourceURL,
		Status:       v.Job.Status,
		ErrorMessage: v.Job.ErrorMessage,
		CreatedAt:    v.Job.CreatedAt,
		ExpandedAt:   v.Job.ExpandedAt,
		Videos:       v.Counts,
		Total:        v.Total(),
		Done:         v.Done(),
	}
}

type videoDTO struct {
	ID              string            `json:"id"`
	JobID           string            `json:"job_id"`
	SourceID        string            `json:"source_id"`
	Index           int               `json:"index"`
	Title           string            `json:"title,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	Status          model.VideoStatus `json:"status"`
	Attempts        int               `json:"attempts"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	FailedAt        *time.Time        `json:"failed_at,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toVideoDTO(v *model.Video) videoDTO {
	return videoDTO{
		ID:              v.ID,
		JobID:           v.JobID,
		SourceID:        v.SourceID,
		Index:           v.Index,
		Title:           v.Title,
		DurationSeconds: v.DurationSeconds,
		Status:          v.Status,
		Attempts:        v.Attempts,
		ErrorMessage:    v.ErrorMessage,
		FailedAt:        v.FailedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

type segmentDTO struct {
	Seq          int     `json:"seq"`
	StartMS      int64   `json:"start_ms"`
	EndMS        int64   `json:"end_ms"`
	Text         string  `json:"text"`
	SpeakerID    string  `json:"speaker_id,omitempty"`
	SpeakerLabel string  `json:"speaker_label,omitempty"`
	Confidence   float64 `json:"confidence"`
}

type transcriptDTO struct {
	VideoID   string       `json:"video_id"`
	Model     string       `json:"model"`
	Language  string       `json:"language,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Segments  []segmentDTO `json:"segments"`
}

func toTranscriptDTO(t *model.Transcript) transcriptDTO {
	out := transcriptDTO{
		VideoID:   t.VideoID,
		Model:     t.Model,
		Language:  t.Language,
		CreatedAt: t.CreatedAt,
		Segments:  make([]segmentDTO, 0, len(t.Segments)),
	}
	for _, s := range t.Segments {
		out.Segments = append(out.Segments, segmentDTO{
			Seq:          s.Seq,
			StartMS:      s.StartMS,
			EndMS:        s.EndMS,
			Text:         s.Text,
			SpeakerID:    s.SpeakerID,
			SpeakerLabel: s.SpeakerLabel,
			Confidence:   s.Confidence,
		})
	}
	return out
}
