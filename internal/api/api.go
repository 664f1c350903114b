package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ilpi-dev/ilpi-store/internal/insights"
	"github.com/ilpi-dev/ilpi-store/internal/report"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	API      sdk.API
	Insights *insights.Service
	Now      func() time.Time
}

// Register mounts every route under /api.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api")
	{
		g.GET("/data", h.GetData)
		g.PUT("/employees", h.PutEmployees)
		g.PUT("/shifts", h.PutShifts)
		g.PUT("/vacations", h.PutVacations)
		g.POST("/reset", h.Reset)
		g.POST("/import", h.Import)
		g.GET("/export", h.Export)
		g.GET("/reports/summary", h.Summary)
		g.GET("/reports/hours.xlsx", h.HoursXLSX)
		g.GET("/insights", h.ShiftInsights)
		g.GET("/rota/:department", h.Rota)
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// fail writes err with the status its kind maps to.
func fail(c *gin.Context, err error) {
	var verrs schema.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verrs.ToMap()})
	case errors.Is(err, sdk.ErrMalformedImport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) GetData(c *gin.Context) {
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) PutEmployees(c *gin.Context) {
	var items []schema.Employee
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := schema.ValidateEmployees(items); err != nil {
		fail(c, err)
		return
	}
	out, err := h.API.SyncEmployees(c.Request.Context(), items)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) PutShifts(c *gin.Context) {
	var items []schema.ShiftRecord
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := schema.ValidateShifts(items); err != nil {
		fail(c, err)
		return
	}
	out, err := h.API.SyncShifts(c.Request.Context(), items)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) PutVacations(c *gin.Context) {
	var items []schema.VacationRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := schema.ValidateVacations(items); err != nil {
		fail(c, err)
		return
	}
	out, err := h.API.SyncVacations(c.Request.Context(), items)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Reset(c *gin.Context) {
	env, err := h.API.ResetSystem(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) Import(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	env, err := h.API.ImportData(c.Request.Context(), raw)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) Export(c *gin.Context) {
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	body, err := sdk.Export(env)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sdk.ExportFileName(env, h.now())))
	c.Data(http.StatusOK, "application/json", body)
}

func (h *Handler) Summary(c *gin.Context) {
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Build(env))
}

func (h *Handler) HoursXLSX(c *gin.Context) {
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ilpi_horas_%s.xlsx"`, h.now().Format(schema.DateLayout)))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := report.WriteXLSX(c.Writer, report.Build(env)); err != nil {
		c.Error(err)
	}
}

func (h *Handler) ShiftInsights(c *gin.Context) {
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	text := h.Insights.ShiftInsights(c.Request.Context(), env.Employees, env.Shifts)
	c.JSON(http.StatusOK, gin.H{"insights": text})
}

func (h *Handler) Rota(c *gin.Context) {
	department := schema.Department(c.Param("department"))
	if !department.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown department %q", department)})
		return
	}
	env, err := h.API.FetchAllData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	proposal, err := h.Insights.RotaSuggestion(c.Request.Context(), department, env.Employees)
	if errors.Is(err, insights.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}
