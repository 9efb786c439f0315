package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certo/internal/certificate"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Service defines the interface for certificate registry operations.
type Service interface {
	Issue(ctx context.Context, in certificate.IssueInput) (*certificate.Certificate, error)
	Revoke(ctx context.Context, patientID id.Identity, certID id.CertificateID, reason string) error
	Get(ctx context.Context, patientID id.Identity, certID id.CertificateID) (*certificate.Certificate, error)
	InitiateRecall(ctx context.Context, vaccineHash []byte, reason string) (*certificate.Recall, error)
	ConfirmRecall(ctx context.Context, recallID id.RecallID) (*certificate.Recall, error)
	GetRecall(ctx context.Context, recallID id.RecallID) (*certificate.Recall, error)
}

// Handler handles certificate and recall endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a certificate Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the certificate routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(cr chi.Router) {
		cr.Use(middleware.Recovery(h.logger))
		cr.Use(middleware.RequestID)
		cr.Use(middleware.LedgerClock)
		cr.Use(middleware.Logger(h.logger))
		cr.Use(middleware.Timeout(30 * time.Second))
		cr.Use(middleware.ContentTypeJSON)
		cr.Use(middleware.Latency(h.metrics))
		cr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		cr.Post("/certificates", h.handleIssue)
		cr.Post("/certificates/{patientID}/{certID}/revoke", h.handleRevoke)
		cr.Get("/certificates/{patientID}/{certID}", h.handleGet)
		cr.Post("/recalls", h.handleInitiateRecall)
		cr.Post("/recalls/{recallID}/confirm", h.handleConfirmRecall)
		cr.Get("/recalls/{recallID}", h.handleGetRecall)
	})
}

type issueRequest struct {
	Patient        string `json:"patient"`
	VaccineHash    string `json:"vaccine_hash"`
	ValidityPeriod uint64 `json:"validity_period"`
	Commitment     string `json:"commitment"`
	// An omitted mask falls back to the patient's stored preferences.
	DisclosureMask *int `json:"disclosure_mask,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[issueRequest](w, r, h.logger)
	if !ok {
		return
	}

	vaccineHash, err := decodeHash(req.VaccineHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	commitment, err := decodeHash(req.Commitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	mask := certificate.UseDefaultDisclosure
	if req.DisclosureMask != nil {
		mask = *req.DisclosureMask
	}

	cert, err := h.service.Issue(ctx, certificate.IssueInput{
		Patient:        id.Identity(req.Patient),
		VaccineHash:    vaccineHash,
		ValidityPeriod: req.ValidityPeriod,
		Commitment:     commitment,
		DisclosureMask: mask,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "certificate issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, certID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[reasonRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Revoke(ctx, patientID, certID, req.Reason); err != nil {
		h.logger.WarnContext(ctx, "certificate revocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"patient", patientID,
			"certificate", certID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, certID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.service.Get(ctx, patientID, certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

type recallRequest struct {
	VaccineHash string `json:"vaccine_hash"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleInitiateRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[recallRequest](w, r, h.logger)
	if !ok {
		return
	}
	vaccineHash, err := decodeHash(req.VaccineHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recall, err := h.service.InitiateRecall(ctx, vaccineHash, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "recall initiation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, recall)
}

func (h *Handler) handleConfirmRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recallID, err := id.ParseRecallID(chi.URLParam(r, "recallID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recall, err := h.service.ConfirmRecall(ctx, recallID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recall)
}

func (h *Handler) handleGetRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recallID, err := id.ParseRecallID(chi.URLParam(r, "recallID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recall, err := h.service.GetRecall(ctx, recallID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recall)
}

func pathIDs(r *http.Request) (id.Identity, id.CertificateID, error) {
	patientID, err := id.ParseIdentity(chi.URLParam(r, "patientID"))
	if err != nil {
		return "", 0, err
	}
	certID, err := id.ParseCertificateID(chi.URLParam(r, "certID"))
	if err != nil {
		return "", 0, err
	}
	return patientID, certID, nil
}

func decodeHash(raw string) ([]byte, error) {
	h, err := hex.DecodeString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded")
	}
	return h, nil
}
