package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trellis-kg/trellis/internal/server/middleware"
	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/store"
)

// GetRunHandler returns the status of a pipeline run by id.
func GetRunHandler(c echo.Context) error {
	type runParams struct {
		ID string `param:"id" validate:"required"`
	}

	type runResponse struct {
		Message string                 `json:"message,omitempty"`
		Run     *datapoint.PipelineRun `json:"run,omitempty"`
	}

	params := new(runParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, runResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, runResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	run, err := app.Stores.Relational.GetRun(ctx, params.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, runResponse{
				Message: "Run not found",
			})
		}
		logger.Error("Failed to load run", "run_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, runResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, runResponse{Run: &run})
}
