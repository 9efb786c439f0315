package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certo/internal/patient"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	id "certo/pkg/domain"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the interface for patient operations.
type Service interface {
	Register(ctx context.Context, privacyPreferences int, emergencyContact id.Identity) (*patient.Profile, error)
	Get(ctx context.Context, patientID id.Identity) (*patient.Profile, error)
	SetEmergencyContact(ctx context.Context, contact id.Identity) error
}

// Handler handles patient-directory endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a patient Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the patient routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Recovery(h.logger))
		pr.Use(middleware.RequestID)
		pr.Use(middleware.LedgerClock)
		pr.Use(middleware.Logger(h.logger))
		pr.Use(middleware.Timeout(30 * time.Second))
		pr.Use(middleware.ContentTypeJSON)
		pr.Use(middleware.Latency(h.metrics))
		pr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		pr.Post("/patients", h.handleRegister)
		pr.Get("/patients/{patientID}", h.handleGet)
		pr.Put("/patients/emergency-contact", h.handleSetEmergencyContact)
	})
}

type registerRequest struct {
	PrivacyPreferences int    `json:"privacy_preferences"`
	EmergencyContact   string `json:"emergency_contact,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[registerRequest](w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.service.Register(ctx, req.PrivacyPreferences, id.Identity(req.EmergencyContact))
	if err != nil {
		h.logger.WarnContext(ctx, "patient registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, err := id.ParseIdentity(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.service.Get(ctx, patientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

type contactRequest struct {
	Contact string `json:"contact"`
}

func (h *Handler) handleSetEmergencyContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[contactRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetEmergencyContact(ctx, id.Identity(req.Contact)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
