package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/web/handlers"
)

const (
	repartoCSV = "Empresa,Nombre,Cargo,ENLACE LINKEDIN,Numero,NUMERO DATO,TITULACION\n" +
		"Acme,Ana Ruiz,CTO,linkedin.com/in/ana,600111222,1,MBA\n" +
		"Beta,Luis Gil,CEO,linkedin.com/in/luis,600333444,2,Grado\n" +
		"Gamma,Eva Sanz,CFO,linkedin.com/in/eva,600555666,3,\n"
	blacklistCSV = "company,person_name,job_title,link\nACME ,,,\n"
	soldCSV      = "ID Integrador\n3\n"
)

type upload struct {
	part, name, body string
}

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	cfg := DefaultConfig()
	if apiKey != "" {
		cfg.Auth = AuthConfig{Enabled: true, APIKey: apiKey}
	}
	s, err := NewServer(cfg, config.Default(), nil)
	require.NoError(t, err)
	return s
}

func scrubRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.part, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.body))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scrub", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthSkipsAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "full_row", string(resp.Policy.Mode))
	assert.Len(t, resp.Layout, 18)
	assert.Equal(t, "record_id", string(resp.Sales.IDField))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest(http.MethodOptions, "/api/scrub", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestScrubCSV(t *testing.T) {
	s := newTestServer(t, "")

	req := scrubRequest(t, map[string]string{"policy": "field_or", "format": "csv"},
		upload{"distribution", "reparto.csv", repartoCSV},
		upload{"reference", "lista_negra.csv", blacklistCSV},
		upload{"sales", "vendidos.csv", soldCSV},
	)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="contactos_reparto_final_PN.csv"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("X-Scrub-Run-Id"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID Integrador", rows[0][0])
	assert.Equal(t, "2", rows[1][0])
}

func TestScrubXLSXByDefault(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, scrubRequest(t, map[string]string{"policy": "field_or"},
		upload{"distribution", "reparto.csv", repartoCSV},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="contactos_reparto_final_PN.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestScrubSummary(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, scrubRequest(t, map[string]string{"policy": "field_or", "summary": "true"},
		upload{"distribution", "reparto.csv", repartoCSV},
		upload{"reference", "lista_negra.csv", blacklistCSV},
		upload{"sales", "vendidos.csv", soldCSV},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Stats.Input)
	assert.Equal(t, 1, resp.Stats.RemovedBlacklist)
	assert.Equal(t, 1, resp.Stats.RemovedSales)
	assert.Equal(t, 1, resp.Stats.Output)
	assert.Equal(t, map[string]int{"lista_negra.csv": 1, "vendidos.csv": 1}, resp.Removed)
}

func TestScrubErrors(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		kind   string
	}{
		{
			name:   "missing distribution",
			files:  []upload{{"reference", "lista_negra.csv", blacklistCSV}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "unknown preset",
			fields: map[string]string{"policy": "fuzzy"},
			files:  []upload{{"distribution", "reparto.csv", repartoCSV}},
			status: http.StatusUnprocessableEntity,
			kind:   "policy",
		},
		{
			name:   "unknown format",
			fields: map[string]string{"format": "pdf"},
			files:  []upload{{"distribution", "reparto.csv", repartoCSV}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "unsupported upload",
			files:  []upload{{"distribution", "reparto.pdf", repartoCSV}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "two sales files",
			files:  []upload{{"distribution", "reparto.csv", repartoCSV}, {"sales", "a.csv", soldCSV}, {"sales", "b.csv", soldCSV}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, scrubRequest(t, tt.fields, tt.files...))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decodeError(t, rec).Kind)
		})
	}
}

func TestScrubReportsSchemaErrors(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, scrubRequest(t, map[string]string{"policy": "field_or"},
		upload{"distribution", "reparto.csv", "Empresa,Nombre\nAcme,Ana\n"},
		upload{"reference", "otra.csv", "email\na@b.c\n"},
	))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "schema", resp.Kind)
	require.Contains(t, resp.Missing, "reparto.csv")
	require.Contains(t, resp.Missing, "otra.csv")
	assert.Equal(t, "job_title", string(resp.Missing["reparto.csv"][0]))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigFromEnv(t *testing.T) {
	cfg := ConfigFromEnv(config.Env{WebHost: "127.0.0.1", WebPort: 9090, APIKey: "k"})
	assert.Equal(t, ServerConfig{Host: "127.0.0.1", Port: 9090}, cfg.Server)
	assert.Equal(t, AuthConfig{Enabled: true, APIKey: "k"}, cfg.Auth)

	cfg = ConfigFromEnv(config.Env{WebHost: "0.0.0.0", WebPort: 8080})
	assert.False(t, cfg.Auth.Enabled)
}
