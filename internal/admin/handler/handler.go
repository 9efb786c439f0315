package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"certo/internal/audit"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	"certo/internal/registry"
	"certo/internal/validate"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/httputil"
	"certo/pkg/requestcontext"
)

// Providers is the owner-facing slice of the provider service.
type Providers interface {
	Suspend(ctx context.Context, providerID id.Identity, reason string, duration uint64) error
	Reinstate(ctx context.Context, providerID id.Identity) error
	Revoke(ctx context.Context, providerID id.Identity, reason string) error
}

// Patients is the owner-facing slice of the patient service.
type Patients interface {
	VerifyIdentity(ctx context.Context, patientID id.Identity) error
}

// Certificates is the owner-facing slice of the certificate service.
type Certificates interface {
	DeclareEmergency(ctx context.Context) error
	ClearEmergency(ctx context.Context) error
}

// Auditor is the slice of the audit publisher this handler needs.
type Auditor interface {
	Emit(ctx context.Context, entry audit.Entry) error
	List(ctx context.Context, subject id.Identity) ([]audit.Entry, error)
}

// Handler exposes the owner-gated admin surface and the public read surface.
type Handler struct {
	providers    Providers
	patients     Patients
	certificates Certificates
	registry     *registry.Registry
	auditor      Auditor
	owner        id.Identity
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates an admin Handler.
func New(
	providers Providers,
	patients Patients,
	certificates Certificates,
	reg *registry.Registry,
	auditor Auditor,
	owner id.Identity,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		providers:    providers,
		patients:     patients,
		certificates: certificates,
		registry:     reg,
		auditor:      auditor,
		owner:        owner,
		logger:       logger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the admin routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(ar chi.Router) {
		ar.Use(middleware.Recovery(h.logger))
		ar.Use(middleware.RequestID)
		ar.Use(middleware.LedgerClock)
		ar.Use(middleware.Logger(h.logger))
		ar.Use(middleware.Timeout(30 * time.Second))
		ar.Use(middleware.ContentTypeJSON)
		ar.Use(middleware.Latency(h.metrics))
		ar.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		ar.Post("/admin/quorum", h.handleSetQuorum)
		ar.Post("/admin/emergency/declare", h.handleDeclareEmergency)
		ar.Post("/admin/emergency/clear", h.handleClearEmergency)
		ar.Post("/admin/providers/{providerID}/suspend", h.handleSuspendProvider)
		ar.Post("/admin/providers/{providerID}/reinstate", h.handleReinstateProvider)
		ar.Post("/admin/providers/{providerID}/revoke", h.handleRevokeProvider)
		ar.Post("/admin/patients/{patientID}/verify", h.handleVerifyPatient)
		ar.Get("/admin/audit/{subject}", h.handleAuditTrail)
		ar.Get("/registry/stats", h.handleStats)
	})
}

type quorumRequest struct {
	Threshold int `json:"threshold"`
}

func (h *Handler) handleSetQuorum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller != h.owner {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotAuthorized, "only the system owner sets the quorum"))
		return
	}
	req, ok := httputil.Decode[quorumRequest](w, r, h.logger)
	if !ok {
		return
	}
	if !validate.QuorumThreshold(req.Threshold) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "quorum threshold out of range"))
		return
	}

	h.registry.SetQuorumThreshold(req.Threshold)
	if err := h.auditor.Emit(ctx, audit.Entry{
		Subject:     caller,
		Action:      audit.ActionQuorumUpdated,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		Details:     "threshold " + strconv.Itoa(req.Threshold),
		ImpactLevel: 2,
	}); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeclareEmergency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.certificates.DeclareEmergency(ctx); err != nil {
		h.logger.WarnContext(ctx, "declare emergency failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearEmergency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.certificates.ClearEmergency(ctx); err != nil {
		h.logger.WarnContext(ctx, "clear emergency failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suspendRequest struct {
	Reason   string `json:"reason"`
	Duration uint64 `json:"duration"`
}

func (h *Handler) handleSuspendProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[suspendRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.providers.Suspend(ctx, providerID, req.Reason, req.Duration); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReinstateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.providers.Reinstate(ctx, providerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevokeProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, err := id.ParseIdentity(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[reasonRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.providers.Revoke(ctx, providerID, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID, err := id.ParseIdentity(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.patients.VerifyIdentity(ctx, patientID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	subject, err := id.ParseIdentity(chi.URLParam(r, "subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Subjects may read their own trail; everything else is owner-only.
	if caller != h.owner && caller != subject {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotAuthorized, "trail access denied"))
		return
	}

	entries, err := h.auditor.List(ctx, subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.registry.Snapshot())
}
