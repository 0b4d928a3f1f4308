package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/database"
)

// HealthHandler serves the unauthenticated liveness probe.
type HealthHandler struct {
	DB *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{DB: db}
}

// Check always answers 200. A broken store degrades the payload, not
// the response code, so load balancers keep routing while operators
// still see the problem.
func (h *HealthHandler) Check(c echo.Context) error {
	db := database.Check(c.Request().Context(), h.DB)
	status := "ok"
	if db != "connected" {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status, "database": db})
}
