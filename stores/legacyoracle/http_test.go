package legacyoracle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitcoin-sv/brc20indexer/stores/legacyoracle"
	"github.com/bitcoin-sv/brc20indexer/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTokenExistsFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/brc20/ticker/ORDI", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"block_height":"778000"}}`))
	}))
	defer srv.Close()

	c := legacyoracle.New(srv.URL, ulogger.NewTest())
	height, found, err := c.CheckTokenExists(context.Background(), "ORDI")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(778000), height)
}

func TestCheckTokenExistsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := legacyoracle.New(srv.URL, ulogger.NewTest())
	_, found, err := c.CheckTokenExists(context.Background(), "GHOST")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckTokenExistsEmptyResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	c := legacyoracle.New(srv.URL, ulogger.NewTest())
	_, found, err := c.CheckTokenExists(context.Background(), "GHOST")
	require.NoError(t, err)
	assert.False(t, found)
}
