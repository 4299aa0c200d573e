package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnvelopeSender creates a signature envelope for a respondent and returns
// the envelope id. The DocuSign client satisfies it; it is nil when
// e-signature credentials are not configured.
type EnvelopeSender interface {
	CreateEnvelope(ctx context.Context, recipientName, recipientEmail string) (string, error)
}

// Server is the intake HTTP API.
type Server struct {
	store  *Store
	signer EnvelopeSender
	log    *zap.Logger
}

// NewServer creates a Server. signer may be nil; the envelope endpoint then
// responds 503.
func NewServer(store *Store, signer EnvelopeSender) *Server {
	return &Server{
		store:  store,
		signer: signer,
		log:    zap.L().With(zap.String("component", "intake.server")),
	}
}

// Router builds the chi router with CORS and request logging.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/submissions", s.handleCreateSubmission)
		r.Get("/submissions/{id}", s.handleGetSubmission)
		r.Post("/submissions/{id}/envelope", s.handleCreateEnvelope)
		r.Get("/parcels/search", s.handleSearchParcels)
		r.Get("/parcels/{objectID}", s.handleGetParcel)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := s.store.pool.QueryRow(r.Context(), "SELECT 1").Scan(&one); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	sub.Normalize()
	if problems := sub.Validate(); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": problems})
		return
	}

	if err := s.store.UpsertSubmission(r.Context(), &sub); err != nil {
		s.log.Error("upsert submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save submission")
		return
	}

	saved, err := s.store.GetSubmission(r.Context(), sub.ID)
	if err != nil {
		s.log.Error("read back submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load submission")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	sub, err := s.store.GetSubmission(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		s.log.Error("get submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load submission")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		writeError(w, http.StatusServiceUnavailable, "e-signature is not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	sub, err := s.store.GetSubmission(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	if err != nil {
		s.log.Error("get submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load submission")
		return
	}

	// Creating an envelope twice would spam the respondent; return the
	// existing one instead.
	if sub.EnvelopeID != nil {
		writeJSON(w, http.StatusOK, map[string]string{"envelope_id": *sub.EnvelopeID})
		return
	}
	if !sub.WantsSignature {
		writeError(w, http.StatusConflict, "submission did not request a signature")
		return
	}
	if sub.Email == nil {
		writeError(w, http.StatusConflict, "submission has no email for signature delivery")
		return
	}

	envelopeID, err := s.signer.CreateEnvelope(r.Context(), sub.RespondentName, *sub.Email)
	if err != nil {
		s.log.Error("create envelope failed",
			zap.String("submission_id", id.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "could not create signature envelope")
		return
	}

	if err := s.store.SetEnvelopeID(r.Context(), id, envelopeID); err != nil {
		s.log.Error("store envelope id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not record envelope")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"envelope_id": envelopeID})
}

func (s *Server) handleSearchParcels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len(q) < 3 {
		writeError(w, http.StatusBadRequest, "q must be at least 3 characters")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	parcels, err := s.store.SearchParcels(r.Context(), q, limit)
	if err != nil {
		s.log.Error("parcel search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if parcels == nil {
		parcels = []Parcel{}
	}
	writeJSON(w, http.StatusOK, parcels)
}

func (s *Server) handleGetParcel(w http.ResponseWriter, r *http.Request) {
	objectID, err := strconv.ParseInt(chi.URLParam(r, "objectID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "objectID must be an integer")
		return
	}

	p, err := s.store.GetParcel(r.Context(), objectID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "parcel not found")
		return
	}
	if err != nil {
		s.log.Error("get parcel failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load parcel")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
