package pautasdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "pk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"}}`))
			return
		}
		switch r.URL.Path {
		case "/v0/agendas":
			assert.Equal(t, "true", r.URL.Query().Get("finished"))
			w.Write([]byte(`{"items":[{"id":"a1","number":"12","is_finished":true}]}`))
		case "/v0/agendas/a1/processes":
			w.Write([]byte(`[{"id":"p1","position":1,"process_number":"2024001"}]`))
		case "/v0/agendas/a1/export":
			assert.Equal(t, "xlsx", r.URL.Query().Get("format"))
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename=Pauta_12_01-05-2024.xlsx`)
			w.Write([]byte("PK"))
		case "/v0/agendas/a2/export":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":{"code":"agenda_not_finished","message":"Antes de exportar é preciso finalizar a pauta."}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.APIKey = "pk_test"
	ctx := context.Background()

	finished := true
	agendas, err := c.ListAgendas(ctx, &finished)
	require.NoError(t, err)
	require.Len(t, agendas, 1)
	assert.Equal(t, "a1", agendas[0].ID)

	procs, err := c.ListProcesses(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, "2024001", procs[0].ProcessNumber)

	exp, err := c.DownloadExport(ctx, "a1", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "Pauta_12_01-05-2024.xlsx", exp.Filename)
	assert.Equal(t, []byte("PK"), exp.Data)

	_, err = c.DownloadExport(ctx, "a2", "xlsx")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "agenda_not_finished", apiErr.Code)

	c.APIKey = ""
	_, err = c.GetAgenda(ctx, "a1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
