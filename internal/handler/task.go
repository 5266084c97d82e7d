package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/compute-worker/internal/executor"
	"github.com/makeasinger/compute-worker/internal/model"
	"github.com/makeasinger/compute-worker/internal/service"
	"github.com/makeasinger/compute-worker/pkg/response"
)

type TaskHandler struct {
	service   *service.TaskService
	validator *validator.Validate
}

func NewTaskHandler(svc *service.TaskService, v *validator.Validate) *TaskHandler {
	return &TaskHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/tasks
func (h *TaskHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCommand) {
			return response.UnknownCommand(c, "Unknown command: "+req.Command, fiber.Map{
				"supportedCommands": h.service.Commands(),
			})
		}
		return response.QueueError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Cancel handles DELETE /api/tasks/:id
func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.Cancel(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			return response.NotFound(c, "No running task with that ID")
		case errors.Is(err, executor.ErrStopped):
			return response.Unavailable(c, "Executor is not running")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}

// Commands handles GET /api/tasks/commands
func (h *TaskHandler) Commands(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"supportedCommands": h.service.Commands()})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
