package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"jobtrack_worker/core/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	mu       sync.Mutex
	secret   string
	batches  [][]domain.ImportRecord
	corrs    int
	deleted  []string
	failWith int
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get(SecretHeader) != f.secret {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		return
	}
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == importPath:
		var req importRequest
		json.Unmarshal(body, &req)
		f.batches = append(f.batches, req.Records)
		json.NewEncoder(w).Encode(domain.ImportSummary{Processed: len(req.Records)})
	case r.URL.Path == correctionsPath:
		var req correctionsRequest
		json.Unmarshal(body, &req)
		f.corrs += len(req.Corrections)
		json.NewEncoder(w).Encode(domain.CorrectionSummary{Updated: len(req.Corrections)})
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
		json.NewEncoder(w).Encode(deleteResponse{Deleted: true})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeEndpoint, secret string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/", Secret: secret, ChunkSize: 2, HTTPClient: srv.Client()}, zerolog.Nop())
}

func TestSubmitChunksAndSums(t *testing.T) {
	fake := &fakeEndpoint{secret: "s3cret"}
	c := newTestClient(t, fake, "s3cret")

	records := []domain.ImportRecord{{MessageID: "a"}, {MessageID: "b"}, {MessageID: "c"}}
	sum, err := c.Submit(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[1], 1)
}

func TestCorrectAndDelete(t *testing.T) {
	fake := &fakeEndpoint{secret: "s3cret"}
	c := newTestClient(t, fake, "s3cret")
	ctx := context.Background()

	sum, err := c.Correct(ctx, []domain.CorrectionRecord{{MessageID: "a", OriginalType: domain.TypeInterview, CorrectedType: domain.TypeOffer}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)

	ok, err := c.Delete(ctx, "<x@y>")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{messagesPath + "x@y"}, fake.deleted)
}

func TestWrongSecretIsUnauthorized(t *testing.T) {
	fake := &fakeEndpoint{secret: "right"}
	c := newTestClient(t, fake, "wrong")

	_, err := c.Submit(context.Background(), []domain.ImportRecord{{MessageID: "a"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "closed", c.State(), "client errors must not trip the breaker")
}

func TestServerErrorsTripBreaker(t *testing.T) {
	fake := &fakeEndpoint{secret: "s", failWith: http.StatusBadGateway}
	c := newTestClient(t, fake, "s")
	for i := 0; i < 3; i++ {
		_, err := c.Delete(context.Background(), "a")
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadGateway, se.Code)
	}
	assert.Equal(t, "open", c.State())
}
