package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/numerator"
)

func TestClient_Reserve(t *testing.T) {
	var got ReserveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ReservePath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prefix":"FAC-2026","startNumber":51,"endNumber":100}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second)
	rng, err := c.Reserve(context.Background(), "org-1", numerator.KindInvoice, 50)
	require.NoError(t, err)

	assert.Equal(t, numerator.Range{Prefix: "FAC-2026", Start: 51, End: 100}, rng)
	assert.Equal(t, ReserveRequest{OrgID: "org-1", Kind: numerator.KindInvoice, Count: 50}, got)
}

func TestClient_RejectedCarriesServerCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"FORBIDDEN","message":"organization mismatch"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t", time.Second).Reserve(context.Background(), "org-1", numerator.KindQuote, 10)
	require.Error(t, err)

	var rejected *numerator.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusForbidden, rejected.StatusCode)
	assert.Equal(t, "FORBIDDEN", rejected.Code)
	assert.Equal(t, "organization mismatch", rejected.Message)
	assert.True(t, IsRejected(err))
	assert.False(t, numerator.IsOffline(err))
}

func TestClient_RejectsMalformedRanges(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"inverted", `{"prefix":"FAC","startNumber":10,"endNumber":5}`},
		{"zero start", `{"prefix":"FAC","startNumber":0,"endNumber":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).Reserve(context.Background(), "org-1", numerator.KindInvoice, 5)
			assert.True(t, IsRejected(err), "got %v", err)
		})
	}
}

func TestClient_OfflineWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "t", time.Second).Reserve(context.Background(), "org-1", numerator.KindInvoice, 5)
	require.Error(t, err)
	assert.True(t, numerator.IsOffline(err))
	assert.False(t, IsRejected(err))

	_, err = NewClient("", "t", 0).Reserve(context.Background(), "org-1", numerator.KindInvoice, 5)
	assert.True(t, errors.Is(err, numerator.ErrOffline), "no authority configured")
}
