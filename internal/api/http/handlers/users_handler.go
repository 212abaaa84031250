package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/repairflow/repairflow/internal/api/dto"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/repository"
	"github.com/repairflow/repairflow/internal/service"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// UsersHandler manages login and operator accounts.
type UsersHandler struct {
	authService *service.AuthService
	users       repository.UserRepository
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, users repository.UserRepository) *UsersHandler {
	return &UsersHandler{authService: authService, users: users}
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, token, exp, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.FromUser(user),
	}})
}

// CreateUser POST /users. Admin only.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.authService.CreateUser(c.UserContext(), service.CreateUserInput{
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromUser(user)})
}

// ListWorkers GET /users/workers. Admin only, used by the dispatch picker.
func (h *UsersHandler) ListWorkers(c *fiber.Ctx) error {
	workers, err := h.users.ListByRole(c.UserContext(), domain.RoleWorker)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.UserResponse, 0, len(workers))
	for i := range workers {
		items = append(items, dto.FromUser(&workers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ChangePassword POST /auth/password/change.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.authService.ChangePassword(c.UserContext(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

// BindLine POST /users/me/line.
func (h *UsersHandler) BindLine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.BindLineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.authService.BindLine(c.UserContext(), principal.User.ID, req.LineUserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"bound": req.LineUserID != ""}})
}

// Me GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.FromUser(principal.User)})
}
