package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ilpi-dev/ilpi-store/internal/controller"
	"github.com/ilpi-dev/ilpi-store/internal/engine"
	"github.com/ilpi-dev/ilpi-store/internal/insights"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type cannedGenerator struct{ reply string }

func (g cannedGenerator) Generate(context.Context, string, string, bool) (string, error) {
	return g.reply, nil
}

func setupTestRouter(gen insights.Generator) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := engine.NewStore(engine.NewMemBackend(nil), engine.WithLogger(quiet))
	ctrl := controller.New(store, controller.WithLatency(0), controller.WithLogger(quiet))

	h := &Handler{
		API:      sdk.NewLocal(ctrl, nil),
		Insights: insights.NewService(gen, quiet),
		Now:      func() time.Time { return time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC) },
	}
	r := gin.New()
	h.Register(r)
	return r, h
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetData(t *testing.T) {
	r, _ := setupTestRouter(nil)

	w := do(r, "GET", "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env schema.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, engine.CurrentVersion, env.Version)
	assert.Len(t, env.Employees, 1)
}

func TestPutShiftsAndVacations(t *testing.T) {
	r, h := setupTestRouter(nil)

	w := do(r, "PUT", "/api/shifts", `[{"id":"s1","employeeId":"1","date":"2024-05-06","entryTime":"09:00","exitTime":"17:00"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, "PUT", "/api/vacations", `[{"id":"v1","employeeId":"1","startDate":"2024-08-01","endDate":"2024-08-10","status":"Pendiente"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env, err := h.API.FetchAllData(context.Background())
	require.NoError(t, err)
	assert.Len(t, env.Shifts, 1)
	assert.Len(t, env.Vacations, 1)
}

func TestPutEmployees_Invalid(t *testing.T) {
	r, h := setupTestRouter(nil)

	w := do(r, "PUT", "/api/employees", `[{"id":"1","firstName":"Juan","lastName":"García","role":"Jefe","department":"Cocina","status":"Activo"}]`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Contains(t, res.Fields, "employees[0].role")

	w = do(r, "PUT", "/api/employees", `invalid`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env, err := h.API.FetchAllData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema.RoleAdmin, env.Employees[0].Role, "rejected payload is not stored")
}

func TestImportAndReset(t *testing.T) {
	r, h := setupTestRouter(nil)

	w := do(r, "POST", "/api/import", `{"shifts": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, "POST", "/api/import", `{"employees": [{"id": "2", "firstName": "Elena", "lastName": "Ruiz", "role": "Moderador", "department": "Cocina", "status": "Activo"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env, err := h.API.FetchAllData(context.Background())
	require.NoError(t, err)
	require.Len(t, env.Employees, 1)
	assert.Equal(t, "Elena", env.Employees[0].FirstName)

	w = do(r, "POST", "/api/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	env, err = h.API.FetchAllData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Juan", env.Employees[0].FirstName)
}

func TestExport(t *testing.T) {
	r, _ := setupTestRouter(nil)

	w := do(r, "GET", "/api/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ilpi_db_v2_2024-05-06.json"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "{\n  \"version\": 2"))

	// the export can be fed back into import
	w = do(r, "POST", "/api/import", w.Body.String())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestReports(t *testing.T) {
	r, _ := setupTestRouter(nil)
	do(r, "PUT", "/api/shifts", `[{"id":"s1","employeeId":"1","date":"2024-05-06","entryTime":"09:00","exitTime":"17:00"}]`)

	w := do(r, "GET", "/api/reports/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		TotalHours float64 `json:"totalHours"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.InDelta(t, 8.0, summary.TotalHours, 1e-9)

	w = do(r, "GET", "/api/reports/hours.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Empleados")
}

func TestInsights(t *testing.T) {
	r, _ := setupTestRouter(nil)

	w := do(r, "GET", "/api/insights", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), insights.Placeholder)

	w = do(r, "GET", "/api/rota/"+url.PathEscape("Cocina"), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, "GET", "/api/rota/Terraza", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRotaWithModel(t *testing.T) {
	r, _ := setupTestRouter(cannedGenerator{reply: `{"proposal":"Rotar fines de semana","efficiencyScore":75}`})

	w := do(r, "GET", "/api/rota/"+url.PathEscape("Atención al Público"), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p insights.Proposal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Rotar fines de semana", p.Proposal)
	assert.InDelta(t, 75.0, p.EfficiencyScore, 1e-9)
}
