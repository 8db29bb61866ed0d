package server

import (
	"context"
	"log/slog"

	"isupipe/internal/middleware"
	"isupipe/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedUpgradeRequired rejects plain HTTP requests on the feed route and
// checks the livestream exists before the connection is upgraded.
func (s *Server) FeedUpgradeRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("websocket upgrade required"))
		}
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		if _, err := s.livestreams.Get(ctx, id); err != nil {
			return respondError(c, err)
		}
		c.Locals("livestreamID", id)
		return c.Next()
	}
}

// LivestreamFeedHandler streams the committed events of one livestream to a viewer.
// The feed is read-only; inbound frames other than control frames are ignored.
func (s *Server) LivestreamFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		livestreamID, _ := conn.Locals("livestreamID").(uint)
		userID, _ := conn.Locals("userID").(uint)
		ctx := middleware.WithLivestreamID(context.Background(), livestreamID)
		ctx = context.WithValue(ctx, middleware.UserIDKey, userID)

		client, err := s.hub.Register(livestreamID, userID, conn)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "feed registration rejected", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.InfoContext(ctx, "feed connected")

		go client.WritePump()
		client.ReadPump()

		middleware.Logger.InfoContext(ctx, "feed disconnected")
	})
}
