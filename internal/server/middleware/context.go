package middleware

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/trellis-kg/trellis/internal/stores"
	"github.com/trellis-kg/trellis/pkg/search"
)

// App carries the shared handles every route needs.
type App struct {
	Stores *stores.Stores
	Queue  *amqp091.Channel
	S3     *s3.Client
	Search *search.Router
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app})
		}
	}
}
