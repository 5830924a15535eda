package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB      *sql.DB
	Env     string
	started time.Time
}

func NewHealthHandler(db *sql.DB, env string) *HealthHandler {
	return &HealthHandler{DB: db, Env: env, started: time.Now()}
}

func (h *HealthHandler) Health(c echo.Context) error {
	dbStatus := "up"
	if h.DB != nil {
		ctx, cancel := dbCtx(c)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			dbStatus = "down"
		}
	}
	return respond(c, http.StatusOK, "Server is healthy", echo.Map{
		"environment": h.Env,
		"database":    dbStatus,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
