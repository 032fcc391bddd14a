package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/models"
	"github.com/internxt/drivectl/internal/ratelimit"
)

func noSleep(context.Context, time.Duration) error { return nil }

// newTestClient points both Drive and Network URLs at srv and records waits
// instead of sleeping.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *ratelimit.Service) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DriveURL = srv.URL + "/drive"
	cfg.NetworkURL = srv.URL + "/network"
	cfg.APIKey = "test-token"

	svc := ratelimit.NewService(nil, ratelimit.WithSleeper(noSleep))
	client, err := NewClient(context.Background(), cfg, svc, nil)
	require.NoError(t, err)
	return client, svc
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear
// error when the Drive URL is empty.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DriveURL = ""

	_, err := NewClient(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBaseURL)
}

func TestUsageSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/users/usage", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		assert.NoError(t, err, "X-Request-Id should be a uuid")
		assert.Equal(t, "drivectl", r.Header.Get("internxt-client"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"drive":1024,"backups":10,"total":1034}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	usage, err := client.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.Usage{Drive: 1024, Backups: 10, Total: 1034}, usage)
}

func TestLimitUnwrapsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"maxSpaceBytes":2199023255552}}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	limit, err := client.Limit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2199023255552), limit.MaxSpaceBytes)
}

func TestErrorResponsesAreNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"Folder not found"}}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.FolderFiles(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", 0, 50)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode())
	assert.Equal(t, "Folder not found", apiErr.Message)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.NotContains(t, apiErr.URL, "offset=", "query should be stripped from error URL")
	assert.True(t, IsNotFound(err))
	assert.False(t, ratelimit.IsRateLimited(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"Too many requests"}`, "Too many requests"},
		{`{"error":"Unauthorized"}`, "Unauthorized"},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"statusCode":500}`, ""},
		{`upstream connect error`, "upstream connect error"},
		{``, ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

// TestRateLimitedCallRetriedBelowNormalization verifies a 429 is retried by
// the transport and the caller only ever sees the decoded success.
func TestRateLimitedCallRetriedBelowNormalization(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.StartUploadRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Uploads, 1)
		assert.Equal(t, "1", r.URL.Query().Get("multiparts"))

		if calls.Add(1) == 1 {
			w.Header().Set("retry-after", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"message":"Too many requests"}`)
			return
		}
		_, _ = io.WriteString(w, `{"uploads":[{"index":0,"uuid":"u-1","url":"https://storage.example.com/p1"}]}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	out, err := client.StartUpload(context.Background(), "c6fe170df34863c173430633", []models.UploadPart{{Index: 0, Size: 42}})
	require.NoError(t, err)
	require.Len(t, out.Uploads, 1)
	assert.Equal(t, "u-1", out.Uploads[0].UUID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitExhaustedSurfacesError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"Too many requests"}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.RecentFiles(context.Background(), 5)
	require.Error(t, err)

	assert.True(t, ratelimit.IsRateLimited(err))
	status, ok := ratelimit.StatusOf(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, int32(ratelimit.MaxRateLimitRetries+1), calls.Load())
}

func TestQuotaHeadersTrackedPerEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ratelimit.HeaderLimit, "100")
		w.Header().Set(ratelimit.HeaderRemaining, "99")
		w.Header().Set(ratelimit.HeaderReset, "60")
		_, _ = io.WriteString(w, `{"id":"f1","bucket":"b","size":3}`)
	}))
	defer srv.Close()

	client, svc := newTestClient(t, srv)
	for _, id := range []string{"a73b3f5dfe500088647b6", "65c5bf086c78a0ada492d1f"} {
		_, err := client.BucketFileInfo(context.Background(), "c6fe170df34863c173430633", id)
		require.NoError(t, err)
	}

	snap := svc.Snapshot()
	assert.Len(t, snap, 1, "ids should collapse into one endpoint key")
	_, ok := snap[srv.URL+"/network/buckets/:id/files/:id/info"]
	assert.True(t, ok)

	stats := client.Stats()
	assert.Equal(t, int64(2), stats.TotalCalls)
}

func TestNetworkErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !assert.True(t, ok) {
				return
			}
			conn, _, err := hj.Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		_, _ = io.WriteString(w, `{"drive":1,"backups":0,"total":1}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	usage, err := client.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Total)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadPartRetriesStorage429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "part-bytes", string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("ETag", `"etag-123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	etag, err := client.UploadPart(context.Background(), srv.URL+"/storage/part1?X-Amz-Signature=abc", []byte("part-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "etag-123", etag)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadPartNonRateLimitFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.UploadPart(context.Background(), srv.URL+"/storage/part1", []byte("x"))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRoutesToNetworkBase(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	require.NoError(t, client.Get(context.Background(), false, "users/usage", nil, nil))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Get(context.Background(), true, "/buckets", nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, []string{"/drive/users/usage", "/network/buckets"}, paths)
}

func TestRecentFilesAndFinishUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drive/files/recents":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `[{"uuid":"f-1","plainName":"notes","size":"12"}]`)
		case "/network/buckets/c6fe170df34863c173430633/files/finish":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var req models.FinishUploadRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "idx", req.Index)
			_, _ = io.WriteString(w, `{"id":"file-1","bucket":"c6fe170df34863c173430633","size":12}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)

	files, err := client.RecentFiles(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes", files[0].Name)

	out, err := client.FinishUpload(context.Background(), "c6fe170df34863c173430633", models.FinishUploadRequest{
		Index:  "idx",
		Shards: []models.ShardProof{{Hash: "h", UUID: "u-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "file-1", out.ID)

	stats := client.Stats()
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.CallsByPath[srv.URL+"/drive/files/recents"])
}

func TestArgumentValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	_, err := client.FolderFiles(context.Background(), "", 0, 10)
	assert.Error(t, err)
	_, err = client.StartUpload(context.Background(), "bucket", nil)
	assert.Error(t, err)
}
