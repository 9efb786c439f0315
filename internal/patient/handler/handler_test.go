package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"

	"certo/internal/audit"
	httpapi "certo/internal/http"
	"certo/internal/patient"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	"certo/internal/registry"
	"certo/pkg/testutil"
)

// sharedMetrics is package-wide because promauto registers globally.
var sharedMetrics = metrics.New()

// stubValidator accepts any token and uses it verbatim as the subject.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token == "broken" {
		return nil, errors.New("signature mismatch")
	}
	return &middleware.JWTClaims{Subject: token}, nil
}

type PatientHandlerSuite struct {
	suite.Suite
	router http.Handler
}

func (s *PatientHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(3)
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), reg)
	service := patient.NewService(patient.NewInMemoryStore(), auditor, "system-owner")

	s.router = httpapi.NewRouter(nil, New(service, logger, sharedMetrics, stubValidator{}))
}

func TestPatientHandlerSuite(t *testing.T) {
	suite.Run(t, new(PatientHandlerSuite))
}

func (s *PatientHandlerSuite) do(req *http.Request, caller string, clock uint64) *httptest.ResponseRecorder {
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+caller)
	}
	req.Header.Set("X-Ledger-Clock", strconv.FormatUint(clock, 10))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PatientHandlerSuite) TestRegisterAndGet() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/patients", map[string]any{
		"privacy_preferences": 0b1010,
	})
	rec := s.do(req, "alice", 100)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	created := testutil.DecodeJSON[patient.Profile](s.T(), rec)
	s.Equal("alice", string(created.ID))
	s.Equal(0b1010, created.PrivacyPreferences)
	s.Equal(uint64(100), created.CreatedAt)

	rec = s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/patients/alice", nil), "bob", 110)
	s.Require().Equal(http.StatusOK, rec.Code)
	got := testutil.DecodeJSON[patient.Profile](s.T(), rec)
	s.Equal(created, got)
}

func (s *PatientHandlerSuite) TestAuthRequired() {
	s.Run("missing token", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/patients/alice", nil), "", 100)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("rejected token", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/patients/alice", nil), "broken", 100)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *PatientHandlerSuite) TestErrorMapping() {
	s.Run("invalid mask maps to 400", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/patients", map[string]any{
			"privacy_preferences": 16,
		})
		rec := s.do(req, "alice", 100)
		s.Equal(http.StatusBadRequest, rec.Code)

		body := testutil.DecodeJSON[map[string]string](s.T(), rec)
		s.Equal("invalid_input", body["error"])
	})

	s.Run("unknown patient maps to 404", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/patients/ghost", nil), "alice", 100)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("wrong content type maps to 415", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/patients", map[string]any{
			"privacy_preferences": 1,
		})
		req.Header.Set("Content-Type", "text/plain")
		rec := s.do(req, "alice", 100)
		s.Equal(http.StatusUnsupportedMediaType, rec.Code)
	})
}

func (s *PatientHandlerSuite) TestSetEmergencyContact() {
	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/patients", map[string]any{
		"privacy_preferences": 1,
	}), "alice", 100)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/patients/emergency-contact", map[string]any{
		"contact": "bob",
	}), "alice", 110)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(testutil.NewJSONRequest(s.T(), http.MethodGet, "/patients/alice", nil), "alice", 120)
	s.Require().Equal(http.StatusOK, rec.Code)
	got := testutil.DecodeJSON[patient.Profile](s.T(), rec)
	s.Equal("bob", string(got.EmergencyContact))
}

func (s *PatientHandlerSuite) TestHealthz() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
}
