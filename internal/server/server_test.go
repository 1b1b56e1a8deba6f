package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"pauta/internal/config"
	"pauta/internal/db"
	"pauta/internal/engine"
	"pauta/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	token  string
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	return newTestServerWithAuth(t, cfg, AuthConfig{JWTSecret: testSecret})
}

func newTestServerWithAuth(t *testing.T, cfg *config.Config, auth AuthConfig) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	if cfg == nil {
		cfg = config.Default()
	}
	e := engine.New(conn, cfg, zap.NewNop())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL + "/v0", Engine: e, token: mintToken(t, "alice")}
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	return signClaims(t, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

func signClaims(t *testing.T, claims tokenClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/octet-stream"
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.token)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

type idBody struct {
	ID         string `json:"id"`
	Position   int    `json:"position"`
	IsFinished bool   `json:"is_finished"`
	Title      string `json:"title"`
}

func (s *testServer) createAgenda(t *testing.T) idBody {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/agendas", map[string]any{
		"type": "Sessão Ordinária", "number": "12", "date": "2024-05-01",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var a idBody
	require.NoError(t, json.Unmarshal(data, &a))
	return a
}

func (s *testServer) createProcess(t *testing.T, agendaID, number, counselor string) idBody {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/agendas/"+agendaID+"/processes", map[string]any{
		"process_number": number,
		"counselor_name": counselor,
		"summary":        "<p>Ementa</p>",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var p idBody
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, nil)

	res, _ := srv.do(t, http.MethodGet, "/health", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data := srv.do(t, http.MethodGet, "/agendas", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	res, _ = srv.do(t, http.MethodGet, "/agendas", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAgendaExportFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.createAgenda(t)
	assert.Equal(t, "Sessão Ordinária nº 12", a.Title)
	p1 := srv.createProcess(t, a.ID, "2024001", "Fulano")
	p2 := srv.createProcess(t, a.ID, "2024002", "Beltrano")
	assert.Equal(t, 1, p1.Position)
	assert.Equal(t, 2, p2.Position)

	res, data := srv.do(t, http.MethodGet, "/agendas/"+a.ID+"/export?format=xlsx", nil, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "agenda_not_finished", env.Error.Code)
	assert.Equal(t, "Antes de exportar é preciso finalizar a pauta.", env.Error.Message)

	res, data = srv.do(t, http.MethodPost, "/agendas/"+a.ID+"/finish", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPatch, "/processes/"+p1.ID, map[string]any{"stakeholders": "x"}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "agenda_finished", decodeError(t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/agendas/"+a.ID+"/export?format=xlsx", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "Pauta_12_01-05-2024.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Processos")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	res, data = srv.do(t, http.MethodGet, "/agendas/"+a.ID+"/export?format=odt", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestProcessValidationAndNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.createAgenda(t)

	res, data := srv.do(t, http.MethodPost, "/agendas/"+a.ID+"/processes", map[string]any{"counselor_name": "Fulano"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "bad_request", env.Error.Code)
	assert.Equal(t, "process_number", env.Error.Details["field"])

	res, data = srv.do(t, http.MethodGet, "/processes/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)

	res, _ = srv.do(t, http.MethodPost, "/agendas/"+a.ID+"/finish", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "empty agenda cannot be finished")
}

func TestDeleteRenumbers(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.createAgenda(t)
	p1 := srv.createProcess(t, a.ID, "1", "A")
	srv.createProcess(t, a.ID, "2", "B")

	res, data := srv.do(t, http.MethodDelete, "/processes/"+p1.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/agendas/"+a.ID+"/processes", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var items []idBody
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Position)
}

func TestImportRawWorkbook(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.createAgenda(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Conselheiro", "", "Processo"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Fulano", "", "2024001", "", "", "Ementa"}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	f.Close()

	res, data := srv.do(t, http.MethodPost, "/imports/sheets", buf.Bytes(), nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.JSONEq(t, `{"sheets":["Sheet1"]}`, string(data))

	res, data = srv.do(t, http.MethodPost, "/agendas/"+a.ID+"/processes/import", buf.Bytes(), nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var out struct {
		Created []idBody `json:"created"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out.Created, 1)
	assert.Equal(t, 1, out.Created[0].Position)
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	res, data := srv.do(t, http.MethodPost, "/api-keys", map[string]any{"name": "ci"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var key struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(data, &key))
	require.NotEmpty(t, key.Secret)

	res, data = srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "", "X-Api-Key": key.Secret})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me map[string]any
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "alice", me["actor_id"])
	assert.Equal(t, "api_key", me["method"])
	assert.NotContains(t, me, "roles")

	res, data = srv.do(t, http.MethodGet, "/api-keys", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Contains(t, string(data), `"last_used_at"`)

	bob := mintToken(t, "bob")
	res, data = srv.do(t, http.MethodDelete, "/api-keys/"+key.ID, nil, map[string]string{"Authorization": "Bearer " + bob})
	assert.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	res, _ = srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "", "X-Api-Key": key.Secret})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = srv.do(t, http.MethodDelete, "/api-keys/"+key.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "", "X-Api-Key": key.Secret})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestTokenIdentity(t *testing.T) {
	srv := newTestServerWithAuth(t, nil, AuthConfig{JWTSecret: testSecret, Audience: "authenticated"})
	valid := jwt.RegisteredClaims{
		Subject:   "u-123",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	token := signClaims(t, tokenClaims{RegisteredClaims: valid, Email: "ana@mpc.example"})
	res, data := srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me map[string]any
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "u-123", me["actor_id"])
	assert.Equal(t, "ana@mpc.example", me["email"])
	assert.Equal(t, "token", me["method"])

	cases := map[string]jwt.RegisteredClaims{
		"wrong audience": {Subject: "u-123", Audience: jwt.ClaimStrings{"service_role"}, ExpiresAt: valid.ExpiresAt},
		"no expiry":      {Subject: "u-123", Audience: valid.Audience},
		"expired":        {Subject: "u-123", Audience: valid.Audience, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		"no subject":     {Audience: valid.Audience, ExpiresAt: valid.ExpiresAt},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token := signClaims(t, tokenClaims{RegisteredClaims: claims})
			res, data := srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
			assert.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)
		})
	}
}

func TestActorHeaderNeedsOptIn(t *testing.T) {
	srv := newTestServer(t, nil)
	res, _ := srv.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "", "X-Actor-Id": "local"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	local := newTestServerWithAuth(t, nil, AuthConfig{AllowActorHeader: true})
	res, data := local.do(t, http.MethodGet, "/me", nil, map[string]string{"Authorization": "", "X-Actor-Id": "local"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Contains(t, string(data), `"method":"actor_header"`)
}

func TestWebhookDelivery(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
		valid    []bool
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r.Header.Get("X-Pauta-Event"))
		valid = append(valid, r.Header.Get("X-Pauta-Signature") == "sha256="+sign("s3", body))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"agenda.created"}, Secret: "s3"}}
	srv := newTestServer(t, cfg)
	ctx := context.Background()

	d := newWebhookDispatcher(srv.Engine, zap.NewNop())
	require.NotNil(t, d)
	d.dispatchAll(ctx)

	a := srv.createAgenda(t)
	srv.createProcess(t, a.ID, "1", "A")
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"agenda.created"}, received)
	assert.Equal(t, []bool{true}, valid)
}

func TestEventMatcher(t *testing.T) {
	all := eventMatcher(nil)
	assert.True(t, all("process.created"))

	m := eventMatcher([]string{" agenda.* ", "process.deleted"})
	assert.True(t, m("agenda.finished"))
	assert.True(t, m("process.deleted"))
	assert.False(t, m("process.created"))
}

func TestStartWebhooksStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: "http://127.0.0.1:1/hook"}}
	srv := newTestServer(t, cfg)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	StartWebhooks(ctx, srv.Engine, zap.NewNop())
	cancel()
}
