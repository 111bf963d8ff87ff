package ticketclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(&config.TicketIssuanceConfig{
		URL:           url,
		APIKey:        "key",
		Timeout:       time.Second,
		MaxRetryTimes: 3,
		RetryInterval: 5 * time.Millisecond,
		RateLimit:     1000,
		Burst:         10,
	})
}

func TestMintFreeEntries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, mintEndpoint, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "record-1", r.Header.Get("Idempotency-Key"))

		var req mintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-1", req.UserID)
		assert.Equal(t, ticketSource, req.Source)

		ids := make([]string, req.Count)
		for i := range ids {
			ids[i] = "ticket"
		}
		json.NewEncoder(w).Encode(mintResponse{TicketIDs: ids})
	}))
	defer server.Close()

	ids, err := NewTicketClientWithMetrics(newTestClient(server.URL)).
		MintFreeEntries(context.Background(), "user-1", 12, "record-1")
	require.NoError(t, err)
	assert.Len(t, ids, 12)
	assert.Equal(t, int32(1), requests.Load())
}

func TestMintFreeEntries_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ticketIds":["a","b"]}`))
	}))
	defer server.Close()

	ids, err := newTestClient(server.URL).MintFreeEntries(context.Background(), "user-1", 2, "record-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, int32(3), requests.Load())
}

func TestMintFreeEntries_Failures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	t.Run("client errors are not retried", func(t *testing.T) {
		_, err := newTestClient(server.URL).MintFreeEntries(context.Background(), "user-1", 2, "record-1")
		var issuanceErr *types.TicketIssuanceError
		require.True(t, errors.As(err, &issuanceErr))
		assert.Equal(t, "user-1", issuanceErr.UserID)
		assert.Equal(t, int64(2), issuanceErr.Count)
		assert.Equal(t, int32(1), requests.Load())
	})
	t.Run("non positive count", func(t *testing.T) {
		_, err := newTestClient(server.URL).MintFreeEntries(context.Background(), "user-1", 0, "record-1")
		var issuanceErr *types.TicketIssuanceError
		require.True(t, errors.As(err, &issuanceErr))
		assert.Equal(t, int32(1), requests.Load())
	})
}
