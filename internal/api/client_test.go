package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) CurrentToken() (string, bool) {
	return string(s), s != ""
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/v1/", staticToken("tok"), logger.NewNopLogger())

	var out struct {
		Answer string `json:"answer"`
	}
	err := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/notes",
		Query:  url.Values{"page": {"1"}, "limit": {"10"}},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "limit=10&page=1", gotQuery)
	assert.Equal(t, "42", out.Answer)
}

func TestDoWithoutTokenIsUnauthenticated(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""), logger.NewNopLogger())
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/notes/1"}, nil))
	assert.Empty(t, gotAuth)
}

func TestDoUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"code":    200,
			"message": "Success create note",
			"data":    map[string]string{"id": "n1", "title": body["title"]},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, logger.NewNopLogger())

	var out struct {
		Id    string `json:"id"`
		Title string `json:"title"`
	}
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/notes", Body: map[string]string{"title": "A"}}, &out)

	require.NoError(t, err)
	assert.Equal(t, "n1", out.Id)
	assert.Equal(t, "A", out.Title)
}

func TestDoMapsErrorStatuses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    apperr.Kind
		wantMessage string
	}{
		{name: "unauthorized", status: 401, body: `{"message":"Invalid token"}`, wantKind: apperr.KindAuth, wantMessage: "Invalid token"},
		{name: "validation", status: 400, body: `{"success":false,"message":"bad","errors":{"title":"required"}}`, wantKind: apperr.KindValidation, wantMessage: "bad"},
		{name: "not found", status: 404, body: `{"error":"note not found"}`, wantKind: apperr.KindNotFound, wantMessage: "note not found"},
		{name: "plain text", status: 502, body: "bad gateway", wantKind: apperr.KindServer, wantMessage: "bad gateway"},
		{name: "rate limited", status: 429, body: `{"success":false,"message":"limit","data":{"limit":5,"used":5,"reset_after":"2026-01-01T00:00:00Z"}}`, wantKind: apperr.KindRateLimited, wantMessage: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil, logger.NewNopLogger())
			err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantKind, appErr.Kind)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.wantMessage, appErr.Message)
		})
	}
}

func TestDoTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, logger.NewNopLogger(), WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"}, nil)

	require.Error(t, err)
	assert.True(t, apperr.IsNetwork(err))
}

func TestDoContextDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, nil, logger.NewNopLogger())
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/hang"}, nil)

	require.Error(t, err)
	assert.True(t, apperr.IsNetwork(err))
	assert.True(t, IsTimeout(err))
}
