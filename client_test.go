package oaiembed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/oaiembed/types"
)

const okBody = `{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2],"index":0}],"model":"text-embedding-3-small","usage":{"prompt_tokens":5,"total_tokens":5}}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("sk-test", append([]Option{WithBaseURL(srv.URL)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestEmbeddings_SendsRequest(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotHeader http.Header
		gotBody   map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	}, WithOrganization("org-1"))

	req := types.NewEmbeddingRequest(types.Text("hello"), types.ModelTextEmbedding3Small).WithDimensions(256)
	resp, err := c.Embeddings(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/embeddings", gotPath)
	assert.Equal(t, "Bearer sk-test", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "org-1", gotHeader.Get("OpenAI-Organization"))
	_, err = uuid.Parse(gotHeader.Get(RequestIDHeader))
	assert.NoError(t, err)

	assert.Equal(t, map[string]any{
		"input":      "hello",
		"model":      "text-embedding-3-small",
		"dimensions": float64(256),
	}, gotBody)

	require.Len(t, resp.Data, 1)
	assert.Equal(t, []float32{0.1, 0.2}, resp.Data[0].Embedding)
	assert.Equal(t, types.Usage{PromptTokens: 5, TotalTokens: 5}, resp.Usage)
}

func TestEmbeddings_NoTokenSendsNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c, err := NewClient("", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))
	require.NoError(t, err)
}

func TestEmbeddings_BaseURLWithPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", WithBaseURL(srv.URL+"/proxy"))
	require.NoError(t, err)

	_, err = c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))
	require.NoError(t, err)
	assert.Equal(t, "/proxy/v1/embeddings", gotPath)
}

func TestEmbeddings_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error","param":null,"code":null}}`)
	})

	resp, err := c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))
	assert.Nil(t, resp)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, types.ErrorTypeRateLimit, se.Type())
	assert.Contains(t, se.Error(), "slow down")
}

func TestEmbeddings_StatusErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Nil(t, se.APIError)
	assert.Equal(t, "", se.Type())
	assert.Contains(t, string(se.Body), "bad gateway")
}

func TestEmbeddings_ParseError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"object":"list","data":[],"model":"text-embedding-3-small"}`)
	})

	resp, err := c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))
	assert.Nil(t, resp)

	var pe *types.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "usage", pe.Field)
}

func TestEmbeddings_EncodeErrorSendsNothing(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Embeddings(context.Background(), types.NewEmbeddingRequest(types.Texts(), types.ModelTextEmbedding3Small))
	assert.True(t, errors.Is(err, types.ErrEmptyInput))
	assert.False(t, called)
}

func TestEmbeddings_ContextCanceled(t *testing.T) {
	// The server only notices a dropped connection once the body is read, so
	// the handler also waits on release to let srv.Close return.
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Embeddings(ctx, types.NewEmbeddingRequest(types.Text("x"), types.ModelTextEmbedding3Small))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient("sk-test")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL().String())
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)

	c, err = NewClient("sk-test", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	hc := &http.Client{}
	c, err = NewClient("sk-test", WithHTTPClient(hc), WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Zero(t, c.httpClient.Timeout)

	_, err = NewClient("sk-test", WithBaseURL("not a url"))
	assert.Error(t, err)

	_, err = NewClient("sk-test", WithLogger(nil))
	assert.Error(t, err)
}
