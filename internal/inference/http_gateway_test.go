package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestHTTPGateway_Complete(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "NAMES: [PEANUT]\nCONFIDENCE: 90"))
	defer server.Close()

	g := NewHTTPGateway(server.URL, "test-key", WithModel("test-model"), WithMinGap(0))

	out, err := g.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "NAMES: [PEANUT]\nCONFIDENCE: 90", out)
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"CONFIDENCE: 10"}}]}`))
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL, "", WithMinGap(0), WithRetryDelay(time.Millisecond))

	out, err := g.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "CONFIDENCE: 10", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPGateway_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad key"}}`))
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL, "bad", WithMinGap(0), WithRetryDelay(time.Millisecond))

	_, err := g.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGateway_HonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	g := NewHTTPGateway(server.URL, "", WithMinGap(0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Complete(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPGateway_DescribeImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"A squirrel in a hat.\n\nStrong PNUT narrative."}}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	g := NewHTTPGateway(server.URL+"/v1/chat/completions", "", WithMinGap(0))
	ctx := context.Background()

	img, err := g.DescribeImage(ctx, server.URL+"/img.png")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "A squirrel in a hat.", img.Description)
	assert.Equal(t, "Strong PNUT narrative.", img.MemecoinContext)

	img, err = g.DescribeImage(ctx, server.URL+"/page.html")
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestSplitImageContent_SingleParagraph(t *testing.T) {
	img := splitImageContent("Just a picture")
	assert.Equal(t, "Just a picture", img.Description)
	assert.Equal(t, noImageContextLabel, img.MemecoinContext)
}
