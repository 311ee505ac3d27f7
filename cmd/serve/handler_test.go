package serve

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/common"
	"github.com/ValentinKolb/dShop/lib/shop"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShop(t *testing.T, fs afero.Fs) *shop.Shop {
	t.Helper()
	sh, err := shop.NewWithFs(common.DefaultConfig(), fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close() })
	return sh
}

func TestHealthz(t *testing.T) {
	sh := newTestShop(t, afero.NewMemMapFs())
	_, err := sh.Store.AppendDocument(store.CollectionProducts, store.Document{"title": "Shirt"})
	require.NoError(t, err)

	for _, debug := range []bool{false, true} {
		rec := httptest.NewRecorder()
		NewHandler(sh, debug).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Len(t, resp.Collections, len(store.Collections))
		for _, info := range resp.Collections {
			if info.Name == store.CollectionProducts {
				assert.Equal(t, 1, info.Count)
			}
		}
	}
}

func TestHealthz_CorruptCollection(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/carts.json", []byte("{"), 0o644))
	sh := newTestShop(t, fs)

	rec := httptest.NewRecorder()
	NewHandler(sh, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "JSON_PARSE_ERROR", resp.Type)
	assert.NotEmpty(t, resp.Error)
}

func TestMetrics(t *testing.T) {
	sh := newTestShop(t, afero.NewMemMapFs())
	_, err := sh.Search.Search("shirt", 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewHandler(sh, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dshop_search_queries_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	sh := newTestShop(t, afero.NewMemMapFs())

	rec := httptest.NewRecorder()
	NewHandler(sh, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(sh, false).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewServerStartsSweeper(t *testing.T) {
	config := common.DefaultConfig()
	config.SessionTTL = time.Millisecond
	config.SweepInterval = 10 * time.Millisecond
	config.Endpoint = "127.0.0.1:0"
	sh, err := shop.NewWithFs(config, afero.NewMemMapFs())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close() })

	_, err = sh.Sessions.Create("u-1", false)
	require.NoError(t, err)

	server := newServer(sh, false)
	assert.Equal(t, "127.0.0.1:0", server.Addr)
	require.NotNil(t, server.Handler)

	assert.Eventually(t, func() bool {
		docs, err := sh.Store.ReadCollection(store.CollectionSessions)
		return err == nil && len(docs) == 0
	}, 2*time.Second, 10*time.Millisecond, "expired sessions are swept in the background")
}
