package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	"certo/internal/verification"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the interface for disclosure verification operations.
type Service interface {
	Verify(ctx context.Context, in verification.VerifyInput) (*verification.Record, bool, error)
	GetRecord(ctx context.Context, patientID id.Identity, recordID id.VerificationID) (*verification.Record, error)
}

// Handler handles verification endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a verification Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the verification routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(vr chi.Router) {
		vr.Use(middleware.Recovery(h.logger))
		vr.Use(middleware.RequestID)
		vr.Use(middleware.LedgerClock)
		vr.Use(middleware.Logger(h.logger))
		vr.Use(middleware.Timeout(30 * time.Second))
		vr.Use(middleware.ContentTypeJSON)
		vr.Use(middleware.Latency(h.metrics))
		vr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		vr.Post("/verifications", h.handleVerify)
		vr.Get("/verifications/{patientID}/{recordID}", h.handleGetRecord)
	})
}

type verifyRequest struct {
	Patient         string   `json:"patient"`
	RequiredHashes  []string `json:"required_hashes"`
	DisclosureLevel int      `json:"disclosure_level"`
	Purpose         string   `json:"purpose"`
}

type verifyResponse struct {
	Passed bool                 `json:"passed"`
	Record *verification.Record `json:"record"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[verifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	hashes := make([][]byte, len(req.RequiredHashes))
	for i, raw := range req.RequiredHashes {
		decoded, err := hex.DecodeString(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded"))
			return
		}
		hashes[i] = decoded
	}

	record, passed, err := h.service.Verify(ctx, verification.VerifyInput{
		Patient:         id.Identity(req.Patient),
		RequiredHashes:  hashes,
		DisclosureLevel: req.DisclosureLevel,
		Purpose:         req.Purpose,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{Passed: passed, Record: record})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, err := id.ParseIdentity(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recordID, err := id.ParseVerificationID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.GetRecord(ctx, patientID, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}
