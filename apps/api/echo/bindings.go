package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// ActionRequest applies Action to the objects of IDs.
	ActionRequest struct {
		Action string `json:"action" validate:"required"`
		IDs    []int  `json:"ids" validate:"required,min=1,dive,gt=0"`
	}

	AnswerRequest struct {
		QuestionID int `json:"question_id" validate:"required,gt=0"`
		OptionID   int `json:"option_id" validate:"required,gt=0"`
	}

	ScenarioRequest struct {
		Event    string `json:"event" validate:"required"`
		ModuleID int    `json:"module_id" validate:"omitempty,gt=0"`
	}

	SettingRequest struct {
		Value string `json:"value"`
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

// pathID returns the positive integer path parameter name, or a 404.
func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
