package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "roster", r.URL.Query().Get("action"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rows":[
			{"dutyRole":"IV Admixture","station":"Cleanroom","dayOfWeek":"MONDAY","startTime":"08:00","endTime":"16:00"},
			{"dutyRole":"OP Dispensing","station":"Counter 2","dayOfWeek":"TUESDAY","startTime":"08:00","endTime":"16:00","notes":"senior on call"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token", time.Second)
	rows, err := client.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "IV Admixture", rows[0].DutyRole)
	assert.Equal(t, "senior on call", rows[1].Notes)
}

func TestFetchRosterNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "script error", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.FetchRoster(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchRosterBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>sign in required</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second)
	_, err := client.FetchRoster(context.Background())
	require.Error(t, err)
}
