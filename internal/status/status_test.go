package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumendb/lumen/internal/config"
	"github.com/lumendb/lumen/internal/store"
)

func TestStatus_EmptyAddrDisables(t *testing.T) {
	ks := store.New()
	defer ks.Close()
	s := New(&config.Config{Role: config.RolePrimary}, ks)

	addr, err := s.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, addr)
}

func TestStatus_ServesJSON(t *testing.T) {
	ks := store.New()
	defer ks.Close()
	ks.Set("a", []byte("1"), 0)
	ks.Set("b", []byte("2"), 0)

	cfg := &config.Config{Role: config.RolePrimary, MasterReplID: "abc123", MasterReplOffset: 0}
	s := New(cfg, ks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := s.Start(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/status", addr.String()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, config.RolePrimary, body.Role)
	assert.Equal(t, "abc123", body.MasterReplID)
	assert.Equal(t, 2, body.Keys)
}
