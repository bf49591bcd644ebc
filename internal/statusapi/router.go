package statusapi

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/gonzb/internal/history"
	"github.com/datallboy/gonzb/internal/queue"
)

// App bundles the dependencies the status routes read from.
type App struct {
	Queue   *queue.Manager
	History *history.Store
	Log     *slog.Logger
}

// RegisterRoutes wires the engine's status endpoints onto e, mirroring the
// teacher's RegisterRoutes(e, app) shape.
func RegisterRoutes(e *echo.Echo, app *App) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			app.Log.Info("http request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	e.GET("/jobs/:id", func(c echo.Context) error {
		item, ok := app.Queue.Get(c.PathParam("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, ErrorOutput{Error: "job not found"})
		}
		return c.JSON(http.StatusOK, item)
	})

	e.POST("/jobs/:id/cancel", func(c echo.Context) error {
		app.Queue.Cancel(c.PathParam("id"))
		return c.NoContent(http.StatusAccepted)
	})

	e.GET("/history", func(c echo.Context) error {
		records, err := app.History.List(50)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorOutput{Error: "history query failed", Details: err.Error()})
		}
		return c.JSON(http.StatusOK, records)
	})
}
