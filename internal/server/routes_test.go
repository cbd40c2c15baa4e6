package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, HubOptions{})
	handler := SetupRoutes(h, RouteOptions{}, nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"root answers probes", http.MethodGet, "/", "", http.StatusOK},
		{"reconnect probe", http.MethodGet, "/reconnect", "", http.StatusOK},
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK},
		{"chat line", http.MethodPost, "/chat", `{"message":"GG"}`, http.StatusAccepted},
		{"chat bad json", http.MethodPost, "/chat", `{`, http.StatusBadRequest},
		{"chat empty", http.MethodPost, "/chat", `{"message":""}`, http.StatusBadRequest},
		{"connect", http.MethodPost, "/connect", "", http.StatusNoContent},
		{"disconnect", http.MethodDelete, "/connect", "", http.StatusNoContent},
		{"unknown", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
