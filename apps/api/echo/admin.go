package echoapi

import (
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core/admin"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
)

type adminApi struct {
	learners school.LearnerRepository
	filters  map[string]admin.Filter
	actions  *admin.Actions
	jobs     JobRunner
	validate *validator.Validate
}

func (s *Server) registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	api := adminApi{
		learners: s.opts.Learners,
		filters:  s.opts.Filters,
		actions:  s.opts.Actions,
		jobs:     s.opts.Jobs,
		validate: s.opts.Validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/filters", api.filterOptions)
	ag.GET("/learners", api.queryLearners)
	ag.POST("/classes/actions", api.classAction)
	ag.POST("/questions/actions", api.questionAction, adminMiddleware(user.RoleAdminContent, user.RoleAdminManager))
	ag.POST("/jobs/:name", api.runJob, adminMiddleware(user.RoleAdminManager))
}

// filterParams returns the filter query params in a stable order.
func (api *adminApi) filterParams() []string {
	params := make([]string, 0, len(api.filters))
	for p := range api.filters {
		params = append(params, p)
	}
	sort.Strings(params)
	return params
}

// Handlers

func (api *adminApi) filterOptions(ctx echo.Context) error {
	options := make(map[string][]admin.Option, len(api.filters))
	for _, param := range api.filterParams() {
		opts, err := api.filters[param].Options(ctx.Request().Context())
		if err != nil {
			return errors.Wrapf(err, "listing %s filter options", param)
		}
		options[param] = opts
	}
	return ctx.JSON(http.StatusOK, options)
}

// queryLearners lists the learners narrowed by every filter found in the query params.
func (api *adminApi) queryLearners(ctx echo.Context) error {
	learners, err := api.learners.QueryLearners(ctx.Request().Context(), school.LearnerFilter{})
	if err != nil {
		return errors.Wrap(err, "querying learners")
	}
	for _, param := range api.filterParams() {
		value := ctx.QueryParam(param)
		if value == "" {
			continue
		}
		if learners, err = api.filters[param].Apply(ctx.Request().Context(), learners, value); err != nil {
			return errors.Wrapf(err, "applying %s filter", param)
		}
	}
	if learners == nil {
		learners = []school.Learner{}
	}
	return ctx.JSON(http.StatusOK, learners)
}

func (api *adminApi) bindAction(ctx echo.Context) (ActionRequest, error) {
	var data ActionRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to ActionRequest")
	}
	return data, api.validate.Struct(data)
}

func (api *adminApi) classAction(ctx echo.Context) error {
	data, err := api.bindAction(ctx)
	if err != nil {
		return err
	}
	if err = api.actions.RunClassAction(ctx.Request().Context(), admin.ClassAction(data.Action), data.IDs...); err != nil {
		return errors.Wrap(err, "running class action")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": len(data.IDs)})
}

func (api *adminApi) questionAction(ctx echo.Context) error {
	data, err := api.bindAction(ctx)
	if err != nil {
		return err
	}
	n, err := api.actions.RunQuestionAction(ctx.Request().Context(), admin.QuestionAction(data.Action), data.IDs...)
	if err != nil {
		return errors.Wrap(err, "running question action")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}

func (api *adminApi) runJob(ctx echo.Context) error {
	name := ctx.Param("name")
	if err := api.jobs.RunNow(ctx.Request().Context(), name); err != nil {
		return errors.Wrapf(err, "running job %s", name)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "job " + name + " done"})
}
