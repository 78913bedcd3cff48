package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/frame-viewer/internal/domain"
)

func TestListFilter(t *testing.T) {
	assert.Equal(t, "status='published'", ListFilter(""))
	assert.Equal(t,
		`(status='published') && (deviceScopes~'"dev1"' || deviceScopes = [] || deviceScopes = null)`,
		ListFilter("dev1"))
}

func TestSubscriptionTopic(t *testing.T) {
	assert.Equal(t, "media?filter=status='published'", SubscriptionTopic("media", ""))
	assert.Equal(t,
		"media?filter=(status='published') && (deviceScopes~'dev1' || deviceScopes='[]' || deviceScopes='' || deviceScopes=null)",
		SubscriptionTopic("media", "dev1"))
}

func TestClient_ListMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/collections/media/records", r.URL.Path)
		assert.Equal(t, "status='published'", r.URL.Query().Get("filter"))
		assert.Equal(t, "500", r.URL.Query().Get("perPage"))
		assert.Equal(t, "-created", r.URL.Query().Get("sort"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"page":1,"perPage":500,"totalItems":2,"items":[{"id":"a","type":"image"},{"id":"b","type":"video"}]}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL + "/"})
	items, err := c.ListMedia(context.Background(), ListFilter(""), "tok")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.True(t, items[1].IsVideo())
}

func TestClient_ListMediaErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check:  domain.IsUnauthorized,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(err error) bool {
				var se *domain.StatusError
				return errors.As(err, &se) && se.StatusCode == 500
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"items":`,
			check: func(err error) bool {
				var de *domain.DecodeError
				return errors.As(err, &de)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(&Config{BaseURL: srv.URL}).ListMedia(context.Background(), "x", "")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestClient_TransferError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(&Config{BaseURL: url}).ListMedia(context.Background(), "x", "")
	assert.True(t, domain.IsTransfer(err), "got %v", err)
}

func TestClient_AuthWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/collections/users/auth-with-password", r.URL.Path)

		var req authRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Identity != "me@example.com" || req.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"token":"fresh","record":{"id":"u1"}}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL})
	token, err := c.AuthWithPassword(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	_, err = c.AuthWithPassword(context.Background(), "me@example.com", "wrong")
	assert.Error(t, err)
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	body, err := NewClient(&Config{BaseURL: srv.URL}).Fetch(context.Background(), srv.URL+"/a.jpg", "")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}
