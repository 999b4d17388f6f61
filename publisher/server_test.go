package publisher_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/publisher"
)

func TestServerGetOutcomeFound(t *testing.T) {
	store := publisher.NewMemStore()
	store.Record(publisher.Outcome{Repository: "acme-widgets", Number: 7, Message: "allowed"})

	srv := publisher.New(publisher.Config{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/status/acme-widgets/7", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "allowed")
}

func TestServerGetOutcomeNotFound(t *testing.T) {
	srv := publisher.New(publisher.Config{Store: publisher.NewMemStore()})

	req := httptest.NewRequest(http.MethodGet, "/status/acme-widgets/99", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerGetOutcomeInvalidNumber(t *testing.T) {
	srv := publisher.New(publisher.Config{Store: publisher.NewMemStore()})

	req := httptest.NewRequest(http.MethodGet, "/status/acme-widgets/not-a-number", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := publisher.New(publisher.Config{Store: publisher.NewMemStore()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
