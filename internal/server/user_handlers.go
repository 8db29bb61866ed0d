package server

import (
	"isupipe/internal/models"
	"isupipe/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/register
// @Summary Register user
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{name=string,display_name=string,description=string,password=string,theme=object{dark_mode=bool}} true "Registration"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
		Password    string `json:"password"`
		Theme       struct {
			DarkMode bool `json:"dark_mode"`
		} `json:"theme"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.users.Register(ctx, service.RegisterInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Password:    req.Password,
		DarkMode:    req.Theme.DarkMode,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /api/login
// @Summary Login
// @Description Authenticate and return a session token
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} object{token=string,expires_at=int,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Name)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"user":       user,
	})
}

// GetMe handles GET /api/user/me
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.users.GetMe(ctx, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUser handles GET /api/user/:username
// @Summary Get user
// @Tags users
// @Produce json
// @Param username path string true "User name"
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/{username} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := s.users.GetByName(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserStatistics handles GET /api/user/:username/statistics
// @Summary User statistics
// @Tags statistics
// @Produce json
// @Param username path string true "User name"
// @Success 200 {object} service.UserStatistics
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/{username}/statistics [get]
func (s *Server) GetUserStatistics(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := s.ranking.UserStatistics(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetUserLivestreams handles GET /api/user/:username/livestream
// @Summary List user livestreams
// @Tags livestreams
// @Produce json
// @Param username path string true "User name"
// @Success 200 {array} models.Livestream
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/{username}/livestream [get]
func (s *Server) GetUserLivestreams(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	livestreams, err := s.livestreams.ListByUser(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(livestreams)
}
