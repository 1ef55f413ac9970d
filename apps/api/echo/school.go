package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

func (s *Server) registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	api := schoolApi{
		svc:      s.opts.SchoolSvc,
		validate: s.opts.Validate,
	}

	pg := g.Group("/participants/:id", jwt, staffMiddleware)
	pg.GET("/level", api.level)
	pg.POST("/answers", api.answer)
	pg.POST("/scenarios", api.awardScenario)
	pg.POST("/golden-egg", api.awardGoldenEgg)
	pg.POST("/recalculate", api.recalculate, adminMiddleware())

	sg := g.Group("/settings/:key", jwt, adminMiddleware(user.RoleAdminManager))
	sg.GET("", api.setting)
	sg.PUT("", api.setSetting)
}

// Handlers

func (api *schoolApi) level(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	level, err := api.svc.Level(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting level")
	}
	return ctx.JSON(http.StatusOK, level)
}

func (api *schoolApi) answer(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data AnswerRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	ans, err := api.svc.Answer(ctx.Request().Context(), id, data.QuestionID, data.OptionID)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusCreated, ans)
}

func (api *schoolApi) awardScenario(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data ScenarioRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScenarioRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	var moduleID null.Int
	if data.ModuleID > 0 {
		moduleID = null.IntFrom(data.ModuleID)
	}
	p, err := api.svc.AwardScenario(ctx.Request().Context(), id, data.Event, moduleID)
	if err != nil {
		return errors.Wrap(err, "awarding scenario")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *schoolApi) awardGoldenEgg(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	rewardLog, err := api.svc.AwardGoldenEgg(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "awarding golden egg")
	}
	return ctx.JSON(http.StatusCreated, rewardLog)
}

func (api *schoolApi) recalculate(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := api.svc.RecalculateTotalPoints(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "recalculating points")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *schoolApi) setting(ctx echo.Context) error {
	key := ctx.Param("key")
	value, err := api.svc.Setting(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting setting")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"key": key, "value": value})
}

func (api *schoolApi) setSetting(ctx echo.Context) error {
	var data SettingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingRequest")
	}
	key := ctx.Param("key")
	if err := api.svc.SetSetting(ctx.Request().Context(), key, data.Value); err != nil {
		return errors.Wrap(err, "saving setting")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"key": key, "value": data.Value})
}
