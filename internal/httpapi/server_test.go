package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/indexer"
	"github.com/MrEthical07/goProfile/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const start int64 = 1_700_000_000_000

type harness struct {
	engine  *goProfile.Engine
	handler http.Handler
	now     *atomic.Int64
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	priv, _, err := capability.GenerateEd25519PEM()
	require.NoError(t, err)
	cfg := goProfile.DefaultConfig()
	cfg.Capability.PrivateKey = priv
	cfg.Metrics.Enabled = true
	cfg.Security.EnableRegisterThrottle = false

	now := &atomic.Int64{}
	now.Store(start)
	engine, err := goProfile.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(goProfile.ClockFunc(now.Load)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	opts = append([]Option{WithMetricsHandler(prometheus.NewPrometheusExporter(engine).Handler())}, opts...)
	srv, err := New(engine, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return &harness{engine: engine, handler: srv.Routes(), now: now}
}

func (h *harness) do(t *testing.T, method, path, principal string, body any, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set("X-Principal", principal)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func hexKey(b byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

func (h *harness) register(t *testing.T, principal string, identity, session byte) (profileID, storeID string) {
	t.Helper()
	rec, out := h.do(t, http.MethodPost, "/v1/profiles", principal, map[string]string{
		"nickname":     "alice",
		"bio":          "hello",
		"identity_key": hexKey(identity),
		"session_key":  hexKey(session),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	profile := out["profile"].(map[string]any)
	return profile["id"].(string), out["session_store_id"].(string)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	rec, out := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["redis_available"])

	h.register(t, "alice", 0xA1, 0x01)
	rec, _ = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goprofile_register_success_total 1")
}

func TestRegisterAndReadProfile(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodPost, "/v1/profiles", "", map[string]string{"nickname": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	profileID, storeID := h.register(t, "alice", 0xA1, 0x01)

	rec, out := h.do(t, http.MethodGet, "/v1/profiles/"+profileID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := out["profile"].(map[string]any)
	assert.Equal(t, "alice", profile["owner"])
	assert.Equal(t, "free", profile["tier_name"])
	assert.Equal(t, false, profile["verified"])
	assert.Equal(t, storeID, profile["session_store_id"])
	assert.Nil(t, profile["avatar"])

	rec, out = h.do(t, http.MethodGet, "/v1/owners/alice/profiles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{profileID}, out["profile_ids"])

	rec, _ = h.do(t, http.MethodGet, "/v1/profiles/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad hex", map[string]string{"nickname": "a", "identity_key": "zz", "session_key": hexKey(1)}},
		{"short key", map[string]string{"nickname": "a", "identity_key": "abcd", "session_key": hexKey(1)}},
		{"empty nickname", map[string]string{"nickname": "", "identity_key": hexKey(1), "session_key": hexKey(2)}},
		{"long nickname", map[string]string{"nickname": strings.Repeat("n", 51), "identity_key": hexKey(1), "session_key": hexKey(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := h.do(t, http.MethodPost, "/v1/profiles", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec, _ := h.do(t, http.MethodPost, "/v1/profiles", "alice", map[string]string{"unknown": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnerGatedProfileUpdates(t *testing.T) {
	h := newHarness(t)
	profileID, _ := h.register(t, "alice", 0xA1, 0x01)

	rec, _ := h.do(t, http.MethodPut, "/v1/profiles/"+profileID+"/nickname", "mallory", map[string]string{"nickname": "pwned"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := h.do(t, http.MethodPut, "/v1/profiles/"+profileID+"/nickname", "alice", map[string]string{"nickname": "alicia"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alicia", out["profile"].(map[string]any)["nickname"])

	rec, out = h.do(t, http.MethodPut, "/v1/profiles/"+profileID+"/avatar/url", "alice", map[string]string{"url": "https://img/a.png"})
	require.Equal(t, http.StatusOK, rec.Code)
	avatar := out["profile"].(map[string]any)["avatar"].(map[string]any)
	assert.Equal(t, "url", avatar["kind"])

	rec, out = h.do(t, http.MethodPost, "/v1/profiles/"+profileID+"/avatar/asset", "alice", map[string]string{
		"image_url": "https://img/b.png",
		"name":      "b",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	avatar = out["profile"].(map[string]any)["avatar"].(map[string]any)
	asset := out["asset"].(map[string]any)
	assert.Equal(t, "asset", avatar["kind"])
	assert.Equal(t, asset["id"], avatar["ref"])

	assetID := asset["id"].(string)
	rec, _ = h.do(t, http.MethodPost, "/v1/assets/"+assetID+"/transfer", "mallory", map[string]string{"recipient": "mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, out = h.do(t, http.MethodPost, "/v1/assets/"+assetID+"/transfer", "alice", map[string]string{"recipient": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", out["asset"].(map[string]any)["owner"])

	rec, out = h.do(t, http.MethodGet, "/v1/facts?subject="+profileID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := out["facts"].([]any)
	require.GreaterOrEqual(t, len(all), 3)
	assert.Equal(t, "", out["next"])

	rec, out = h.do(t, http.MethodGet, "/v1/facts?limit=1&subject="+profileID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["facts"], 1)
	next := out["next"].(string)
	require.NotEmpty(t, next)

	rec, out = h.do(t, http.MethodGet, "/v1/facts?subject="+profileID+"&after="+next, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["facts"], len(all)-1)

	rec, _ = h.do(t, http.MethodGet, "/v1/facts?limit=5000&subject="+profileID, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	_, storeID := h.register(t, "alice", 0xA1, 0x01)
	base := "/v1/stores/" + storeID

	rec, _ := h.do(t, http.MethodPost, base+"/sessions", "alice", map[string]string{"key": hexKey(0x02)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = h.do(t, http.MethodPost, base+"/sessions", "alice", map[string]string{"key": hexKey(0x02)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = h.do(t, http.MethodPost, base+"/sessions", "mallory", map[string]string{"key": hexKey(0x03)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := h.do(t, http.MethodGet, base+"/sessions/"+hexKey(0x02), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["valid"])

	rec, out = h.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["store"].(map[string]any)["session_counter"])

	rec, _ = h.do(t, http.MethodDelete, base+"/sessions/"+hexKey(0x02), "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = h.do(t, http.MethodDelete, base+"/sessions/"+hexKey(0x02), "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	h.now.Add(goProfile.SessionLifetimeMillis + 1)
	rec, out = h.do(t, http.MethodGet, base+"/sessions/"+hexKey(0x01), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["valid"])

	rec, out = h.do(t, http.MethodGet, base+"/sessions", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := out["sessions"].([]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, false, sessions[0].(map[string]any)["live"])

	rec, out = h.do(t, http.MethodPost, base+"/cleanup", "", map[string][]string{"keys": {hexKey(0x01), hexKey(0x09)}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), out["removed"])

	rec, out = h.do(t, http.MethodPost, base+"/sweep", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["removed"])

	rec, _ = h.do(t, http.MethodGet, "/v1/stores/missing/sessions/"+hexKey(1), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodGet, base+"/sessions/nothex", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)
	profileID, _ := h.register(t, "alice", 0xA1, 0x01)

	root, err := h.engine.BootstrapAdmin(context.Background(), "root")
	require.NoError(t, err)
	bearer := []string{"Authorization", "Bearer " + root.Token()}

	rec, _ := h.do(t, http.MethodPost, "/v1/admin/profiles/"+profileID+"/verify", "root", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/v1/admin/profiles/"+profileID+"/verify", "root", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := h.do(t, http.MethodPost, "/v1/admin/caps", "root", map[string]string{"recipient": "deputy"}, bearer...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	capability := out["capability"].(map[string]any)
	assert.Equal(t, "root", capability["issuer"])
	assert.Equal(t, "deputy", capability["holder"])
	deputy := []string{"Authorization", "Bearer " + capability["token"].(string)}

	rec, out = h.do(t, http.MethodPost, "/v1/admin/profiles/"+profileID+"/verify", "deputy", nil, deputy...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["profile"].(map[string]any)["verified"])

	rec, out = h.do(t, http.MethodPost, "/v1/admin/profiles/"+profileID+"/unverify", "root", nil, bearer...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["profile"].(map[string]any)["verified"])

	rec, out = h.do(t, http.MethodPut, "/v1/admin/profiles/"+profileID+"/tier", "root", map[string]int{"tier": 1}, bearer...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "premium", out["profile"].(map[string]any)["tier_name"])

	rec, _ = h.do(t, http.MethodPut, "/v1/admin/profiles/"+profileID+"/tier", "root", map[string]int{"tier": 2}, bearer...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPut, "/v1/admin/profiles/"+profileID+"/tier", "root", map[string]any{}, bearer...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubIndex struct {
	rows []indexer.Row
	err  error
}

func (s stubIndex) BySubject(context.Context, string, int) ([]indexer.Row, error) { return s.rows, s.err }
func (s stubIndex) ByActor(context.Context, string, int) ([]indexer.Row, error)   { return s.rows, s.err }

func TestIndexedFacts(t *testing.T) {
	h := newHarness(t, WithFactIndex(stubIndex{rows: []indexer.Row{{FactID: "1-0", Type: "UserRegistered"}}}))

	rec, out := h.do(t, http.MethodGet, "/v1/index/facts?actor=alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["facts"], 1)

	rec, _ = h.do(t, http.MethodGet, "/v1/index/facts", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/v1/index/facts?subject=x&limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	down := newHarness(t, WithFactIndex(stubIndex{err: errors.New("db down")}))
	rec, _ = down.do(t, http.MethodGet, "/v1/index/facts?subject=x", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexRoutesAbsentWithoutIndex(t *testing.T) {
	h := newHarness(t)
	rec, _ := h.do(t, http.MethodGet, "/v1/index/facts?subject=x", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{goProfile.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("%w: nickname", goProfile.ErrInvalidLength), http.StatusBadRequest},
		{goProfile.ErrInvalidEnumValue, http.StatusBadRequest},
		{goProfile.ErrInvalidKeyEncoding, http.StatusBadRequest},
		{goProfile.ErrDuplicateKey, http.StatusConflict},
		{goProfile.ErrSessionStoreNotFound, http.StatusNotFound},
		{goProfile.ErrAssetNotFound, http.StatusNotFound},
		{goProfile.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: dial", goProfile.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil, zerolog.Nop())
	require.Error(t, err)
}
