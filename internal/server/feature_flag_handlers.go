package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags lists the known and configured flags and their state for the caller.
// @Summary Feature flags
// @Description Known and configured flags with their state for the caller
// @Tags system
// @Produce json
// @Success 200 {object} object{flags=[]string,evaluated=map[string]bool}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)
	return c.JSON(fiber.Map{
		"flags":     s.featureFlags.Names(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
