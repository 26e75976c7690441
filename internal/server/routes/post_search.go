package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trellis-kg/trellis/internal/server/middleware"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/search"
)

// SearchHandler answers semantic, structural and hybrid queries. An empty
// hit list is a valid 200; an unreachable store maps to 503.
func SearchHandler(c echo.Context) error {
	type searchBody struct {
		Query   string `json:"query" validate:"required"`
		Mode    string `json:"mode"`
		Dataset string `json:"dataset"`
		Limit   int    `json:"limit"`
	}

	type searchResponse struct {
		Message string          `json:"message,omitempty"`
		Results []search.Result `json:"results"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
			Results: []search.Result{},
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
			Results: []search.Result{},
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	results, err := app.Search.Search(ctx, search.Query{
		Text:    data.Query,
		Mode:    search.Mode(data.Mode),
		Dataset: data.Dataset,
		Limit:   data.Limit,
	})
	if err != nil {
		var unavailable *search.RetrievalUnavailableError
		if errors.As(err, &unavailable) {
			logger.Error("Retrieval unavailable", "mode", unavailable.Mode, "err", err)
			return c.JSON(http.StatusServiceUnavailable, searchResponse{
				Message: "Retrieval temporarily unavailable",
				Results: []search.Result{},
			})
		}
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid search request",
			Results: []search.Result{},
		})
	}

	if results == nil {
		results = []search.Result{}
	}
	return c.JSON(http.StatusOK, searchResponse{Results: results})
}
