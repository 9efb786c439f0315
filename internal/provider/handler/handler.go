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
	"certo/internal/provider"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the interface for provider registry operations.
type Service interface {
	Register(ctx context.Context, in provider.RegisterInput) (*provider.VerificationRequest, error)
	Review(ctx context.Context, providerID id.Identity, requestID id.RequestID, approve bool, comments string) (*provider.ReviewOutcome, error)
	RenewCredentials(ctx context.Context, newLicenseHash, evidenceHash []byte) error
	Endorse(ctx context.Context, endorsee id.Identity, endorseType provider.EndorsementType, evidenceHash []byte) (*provider.Endorsement, error)
	Get(ctx context.Context, providerID id.Identity) (*provider.Provider, error)
	GetRequest(ctx context.Context, providerID id.Identity, requestID id.RequestID) (*provider.VerificationRequest, error)
}

// Handler handles provider-registry endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a provider Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the provider routes with their middleware chain.
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
		pr.Post("/providers", h.handleRegister)
		pr.Post("/providers/{providerID}/requests/{requestID}/review", h.handleReview)
		pr.Post("/providers/credentials/renew", h.handleRenew)
		pr.Post("/providers/{providerID}/endorse", h.handleEndorse)
		pr.Get("/providers/{providerID}", h.handleGet)
		pr.Get("/providers/{providerID}/requests/{requestID}", h.handleGetRequest)
	})
}

type registerRequest struct {
	LicenseHash     string   `json:"license_hash"`
	Jurisdiction    string   `json:"jurisdiction"`
	RequestedLevel  int      `json:"requested_level"`
	Specializations []string `json:"specializations,omitempty"`
	Institution     string   `json:"institution,omitempty"`
	EvidenceHashes  []string `json:"evidence_hashes,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[registerRequest](w, r, h.logger)
	if !ok {
		return
	}

	licenseHash, err := decodeHash(req.LicenseHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	evidence, err := decodeHashes(req.EvidenceHashes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.service.Register(ctx, provider.RegisterInput{
		LicenseHash:     licenseHash,
		Jurisdiction:    req.Jurisdiction,
		RequestedLevel:  req.RequestedLevel,
		Specializations: req.Specializations,
		Institution:     req.Institution,
		EvidenceHashes:  evidence,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "provider registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, request)
}

type reviewRequest struct {
	Approve  bool   `json:"approve"`
	Comments string `json:"comments,omitempty"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[reviewRequest](w, r, h.logger)
	if !ok {
		return
	}

	outcome, err := h.service.Review(ctx, providerID, requestID, req.Approve, req.Comments)
	if err != nil {
		h.logger.WarnContext(ctx, "review failed",
			"request_id", requestcontext.RequestID(ctx),
			"provider", providerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

type renewRequest struct {
	LicenseHash  string `json:"license_hash"`
	EvidenceHash string `json:"evidence_hash,omitempty"`
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[renewRequest](w, r, h.logger)
	if !ok {
		return
	}

	licenseHash, err := decodeHash(req.LicenseHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evidence []byte
	if req.EvidenceHash != "" {
		if evidence, err = decodeHash(req.EvidenceHash); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	if err := h.service.RenewCredentials(ctx, licenseHash, evidence); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type endorseRequest struct {
	Type         string `json:"type"`
	EvidenceHash string `json:"evidence_hash,omitempty"`
}

func (h *Handler) handleEndorse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endorsee, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[endorseRequest](w, r, h.logger)
	if !ok {
		return
	}
	var evidence []byte
	if req.EvidenceHash != "" {
		if evidence, err = decodeHash(req.EvidenceHash); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	endorsement, err := h.service.Endorse(ctx, endorsee, provider.EndorsementType(req.Type), evidence)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, endorsement)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.Get(ctx, providerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.service.GetRequest(ctx, providerID, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func decodeHash(raw string) ([]byte, error) {
	h, err := hex.DecodeString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded")
	}
	return h, nil
}

func decodeHashes(raw []string) ([][]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([][]byte, len(raw))
	for i, s := range raw {
		h, err := decodeHash(s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
