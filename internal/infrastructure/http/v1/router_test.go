package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/domain/auth"
	"fieldledger/internal/infrastructure/http/v1/dto"
	"fieldledger/internal/infrastructure/reservation"
	"fieldledger/pkg/logger"
)

type stubReserver struct {
	calls []reservation.ReserveRequest
	err   error
	panic bool
}

func (s *stubReserver) Reserve(_ context.Context, orgID string, kind numerator.Kind, count int) (numerator.Range, error) {
	if s.panic {
		panic("boom")
	}
	s.calls = append(s.calls, reservation.ReserveRequest{OrgID: orgID, Kind: kind, Count: count})
	if s.err != nil {
		return numerator.Range{}, s.err
	}
	return numerator.Range{Prefix: kind.DefaultPrefix() + "-2026", Start: 101, End: 100 + int64(count)}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type fixture struct {
	router   http.Handler
	reserver *stubReserver
	jwt      *auth.JWTService
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("s3cret"), clk)
	token, _, err := jwtSvc.GenerateToken(appctx.UserContext{
		UserID: "device-1", OrgID: "org-1", OrgIDs: []string{"org-2"}, Roles: []string{auth.RoleDevice},
	})
	require.NoError(t, err)

	r := &stubReserver{}
	return &fixture{
		router: NewRouter(RouterConfig{
			Logger:       logger.Nop(),
			JWTValidator: jwtSvc,
			Reserver:     r,
			DB:           stubPinger{},
			Version:      "test",
		}),
		reserver: r,
		jwt:      jwtSvc,
		token:    token,
	}
}

func (f *fixture) reserve(t *testing.T, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, reservation.ReservePath, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestReserve_GrantsBlockForTokenOrganization(t *testing.T) {
	f := newFixture(t)

	w := f.reserve(t, f.token, map[string]any{"kind": "invoice", "count": 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ReservationResponse{
		OrgID: "org-1", Kind: "invoice", Prefix: "FAC-2026", StartNumber: 101, EndNumber: 150,
	}, resp)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = f.reserve(t, f.token, map[string]any{"orgId": "org-2", "kind": "quote", "count": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, f.reserver.calls, 2)
	assert.Equal(t, "org-2", f.reserver.calls[1].OrgID)
}

func TestReserve_RejectsOtherOrganization(t *testing.T) {
	f := newFixture(t)

	w := f.reserve(t, f.token, map[string]any{"orgId": "org-9", "kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, decodeError(t, w))
	assert.Empty(t, f.reserver.calls)
}

func TestReserve_RequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.reserve(t, "", map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decodeError(t, w))

	w = f.reserve(t, "garbage", map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.reserver.calls)
}

func TestReserve_RequiresDeviceRole(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.jwt.GenerateToken(appctx.UserContext{UserID: "viewer-1", OrgID: "org-1", Roles: []string{"viewer"}})
	require.NoError(t, err)

	w := f.reserve(t, token, map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, decodeError(t, w))
	assert.Empty(t, f.reserver.calls)
}

func TestReserve_ValidatesBody(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown kind", map[string]any{"kind": "receipt", "count": 10}},
		{"missing count", map[string]any{"kind": "invoice"}},
		{"negative count", map[string]any{"kind": "invoice", "count": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.reserve(t, f.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeValidation, decodeError(t, w))
		})
	}
	assert.Empty(t, f.reserver.calls)
}

func TestReserve_MapsReserverErrors(t *testing.T) {
	f := newFixture(t)

	f.reserver.err = apperror.NewFieldValidation("count", "too many")
	w := f.reserve(t, f.token, map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.reserver.err = errors.New("connection reset")
	w = f.reserve(t, f.token, map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w))
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestReserve_PanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	f.reserver.panic = true

	w := f.reserve(t, f.token, map[string]any{"kind": "invoice", "count": 10})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewRouter(RouterConfig{Logger: logger.Nop(), DB: stubPinger{err: errors.New("down")}})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReserve_WorksAgainstTheDeviceClient(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	c := reservation.NewClient(srv.URL, f.token, time.Second)
	rng, err := c.Reserve(context.Background(), "org-1", numerator.KindQuote, 20)
	require.NoError(t, err)
	assert.Equal(t, numerator.Range{Prefix: "DEV-2026", Start: 101, End: 120}, rng)

	_, err = c.Reserve(context.Background(), "org-9", numerator.KindQuote, 20)
	var rejected *numerator.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, apperror.CodeForbidden, rejected.Code)
}
