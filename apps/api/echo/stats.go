package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/stats"
)

const defaultStatsHours = 24

type statsApi struct {
	svc *stats.Service
}

func (s *Server) registerStatsAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	api := statsApi{svc: s.opts.StatsSvc}

	sg := g.Group("/stats", jwt, adminMiddleware())
	sg.GET("", api.lastHours)
	sg.GET("/questions/:id", api.question)
}

// Handlers

// lastHours reports the activity of the last `hours` hours (24 by default).
func (api *statsApi) lastHours(ctx echo.Context) error {
	hours := defaultStatsHours
	if h := ctx.QueryParam("hours"); h != "" {
		var err error
		if hours, err = strconv.Atoi(h); err != nil || hours < 0 {
			return core.NewValidationError(errors.New("invalid hours"), core.FieldError{
				Field: "hours",
				Error: "must be a positive integer",
			})
		}
	}
	window, err := api.svc.LastHours(ctx.Request().Context(), hours)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, window)
}

func (api *statsApi) question(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	q, err := api.svc.ForQuestion(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "computing question stats")
	}
	return ctx.JSON(http.StatusOK, q)
}
