package server

import (
	"isupipe/internal/models"
	"isupipe/internal/seed"
	"isupipe/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Initialize handles POST /api/initialize. It seeds slots and tags, then
// warms the snapshot cache from the durable store.
// @Summary Initialize
// @Description Seed reservation slots and tags, then warm the snapshot cache
// @Tags system
// @Produce json
// @Success 200 {object} object{language=string}
// @Failure 500 {object} models.ErrorResponse
// @Router /initialize [post]
func (s *Server) Initialize(c *fiber.Ctx) error {
	termStart, termEnd, err := s.config.ReservationTerm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	ctx := c.UserContext()
	if _, err := s.seeder.Run(ctx, seed.Options{
		TermStart:    termStart,
		TermEnd:      termEnd,
		SlotCapacity: s.config.SlotCapacity,
	}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewStoreFailure(err))
	}
	if err := s.manager.WarmCache(ctx); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"language": "golang"})
}

// GetTags handles GET /api/tag
// @Summary List tags
// @Tags livestreams
// @Produce json
// @Success 200 {object} object{tags=[]models.Tag}
// @Router /tag [get]
func (s *Server) GetTags(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	tags, err := s.livestreams.ListTags(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// GetSlots handles GET /api/reservation/slots?from=&to=
// @Summary List reservation slots
// @Description Remaining capacity of every slot inside [from, to]
// @Tags reservations
// @Produce json
// @Param from query int true "Window start (unix seconds)"
// @Param to query int true "Window end (unix seconds)"
// @Success 200 {array} models.ReservationSlot
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reservation/slots [get]
func (s *Server) GetSlots(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	from := int64(c.QueryInt("from", 0))
	to := int64(c.QueryInt("to", 0))
	if from <= 0 || to <= from {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("from and to must form a non-empty window"))
	}
	slots, err := s.allocator.ListSlots(ctx, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slots)
}

// ReserveLivestream handles POST /api/livestream/reservation
// @Summary Reserve a livestream
// @Description Take one unit of slot capacity and create the livestream
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body object{tags=[]int,title=string,description=string,playlist_url=string,thumbnail_url=string,start_at=int,end_at=int} true "Reservation"
// @Success 201 {object} models.Livestream
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/reservation [post]
func (s *Server) ReserveLivestream(c *fiber.Ctx) error {
	var req struct {
		Tags         []uint `json:"tags"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		PlaylistURL  string `json:"playlist_url"`
		ThumbnailURL string `json:"thumbnail_url"`
		StartAt      int64  `json:"start_at"`
		EndAt        int64  `json:"end_at"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	livestream, err := s.livestreams.Reserve(ctx, service.ReserveInput{
		UserID:       currentUserID(c),
		Title:        req.Title,
		Description:  req.Description,
		PlaylistURL:  req.PlaylistURL,
		ThumbnailURL: req.ThumbnailURL,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		TagIDs:       req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(livestream)
}

// SearchLivestreams handles GET /api/livestream/search?tag=&limit=
// @Summary Search livestreams
// @Tags livestreams
// @Produce json
// @Param tag query string false "Tag name"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.Livestream
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/search [get]
func (s *Server) SearchLivestreams(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	livestreams, err := s.livestreams.Search(ctx, c.Query("tag"), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(livestreams)
}

// GetMyLivestreams handles GET /api/livestream
// @Summary List my livestreams
// @Tags livestreams
// @Produce json
// @Success 200 {array} models.Livestream
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream [get]
func (s *Server) GetMyLivestreams(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	me, err := s.users.GetMe(ctx, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	livestreams, err := s.livestreams.ListByUser(ctx, me.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(livestreams)
}

// GetLivestream handles GET /api/livestream/:id
// @Summary Get livestream
// @Tags livestreams
// @Produce json
// @Param id path int true "Livestream ID"
// @Success 200 {object} models.Livestream
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id} [get]
func (s *Server) GetLivestream(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	livestream, err := s.livestreams.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(livestream)
}

// GetLivecomments handles GET /api/livestream/:id/livecomment
// @Summary List livecomments
// @Tags livecomments
// @Produce json
// @Param id path int true "Livestream ID"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.Livecomment
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/livecomment [get]
func (s *Server) GetLivecomments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	comments, err := s.livestreams.ListComments(ctx, id, parseLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// PostLivecomment handles POST /api/livestream/:id/livecomment
// @Summary Post livecomment
// @Description Store a comment with an optional tip; comments matching a banned word are rejected
// @Tags livecomments
// @Accept json
// @Produce json
// @Param id path int true "Livestream ID"
// @Param request body object{comment=string,tip=int} true "Comment"
// @Success 201 {object} models.Livecomment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/livecomment [post]
func (s *Server) PostLivecomment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Comment string `json:"comment"`
		Tip     int64  `json:"tip"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	comment, err := s.livestreams.PostComment(ctx, service.PostCommentInput{
		UserID:       currentUserID(c),
		LivestreamID: id,
		Comment:      req.Comment,
		Tip:          req.Tip,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// ReportLivecomment handles POST /api/livestream/:id/livecomment/:comment_id/report
// @Summary Report livecomment
// @Tags livecomments
// @Produce json
// @Param id path int true "Livestream ID"
// @Param comment_id path int true "Livecomment ID"
// @Success 201 {object} models.LivecommentReport
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/livecomment/{comment_id}/report [post]
func (s *Server) ReportLivecomment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "comment_id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := s.livestreams.ReportComment(ctx, service.ReportCommentInput{
		UserID:        currentUserID(c),
		LivestreamID:  id,
		LivecommentID: commentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetReactions handles GET /api/livestream/:id/reaction
// @Summary List reactions
// @Tags reactions
// @Produce json
// @Param id path int true "Livestream ID"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.Reaction
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/reaction [get]
func (s *Server) GetReactions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	reactions, err := s.livestreams.ListReactions(ctx, id, parseLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reactions)
}

// PostReaction handles POST /api/livestream/:id/reaction
// @Summary Post reaction
// @Tags reactions
// @Accept json
// @Produce json
// @Param id path int true "Livestream ID"
// @Param request body object{emoji_name=string} true "Reaction"
// @Success 201 {object} models.Reaction
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/reaction [post]
func (s *Server) PostReaction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		EmojiName string `json:"emoji_name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	reaction, err := s.livestreams.PostReaction(ctx, service.PostReactionInput{
		UserID:       currentUserID(c),
		LivestreamID: id,
		EmojiName:    req.EmojiName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reaction)
}

// GetReports handles GET /api/livestream/:id/report
// @Summary List reports
// @Description Spam reports filed on the livestream; owner only
// @Tags moderation
// @Produce json
// @Param id path int true "Livestream ID"
// @Success 200 {array} models.LivecommentReport
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/report [get]
func (s *Server) GetReports(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	reports, err := s.livestreams.ListReports(ctx, currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

// GetNGWords handles GET /api/livestream/:id/ngwords
// @Summary List banned words
// @Tags moderation
// @Produce json
// @Param id path int true "Livestream ID"
// @Success 200 {array} models.NGWord
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/ngwords [get]
func (s *Server) GetNGWords(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	words, err := s.moderation.ListBannedWords(ctx, currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(words)
}

// Moderate handles POST /api/livestream/:id/moderate
// @Summary Register banned word
// @Description Register a word and purge existing comments containing it; owner only
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Livestream ID"
// @Param request body object{ng_word=string} true "Banned word"
// @Success 201 {object} object{word_id=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/moderate [post]
func (s *Server) Moderate(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		NGWord string `json:"ng_word"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	word, err := s.moderation.RegisterBannedWord(ctx, service.RegisterWordInput{
		UserID:       currentUserID(c),
		LivestreamID: id,
		Word:         req.NGWord,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"word_id": word.ID})
}

// EnterLivestream handles POST /api/livestream/:id/enter
// @Summary Enter livestream
// @Tags viewers
// @Param id path int true "Livestream ID"
// @Success 200
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/enter [post]
func (s *Server) EnterLivestream(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.livestreams.Enter(ctx, currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// ExitLivestream handles DELETE /api/livestream/:id/exit
// @Summary Exit livestream
// @Tags viewers
// @Param id path int true "Livestream ID"
// @Success 200
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/exit [delete]
func (s *Server) ExitLivestream(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.livestreams.Exit(ctx, currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// GetLivestreamStatistics handles GET /api/livestream/:id/statistics
// @Summary Livestream statistics
// @Tags statistics
// @Produce json
// @Param id path int true "Livestream ID"
// @Success 200 {object} service.LivestreamStatistics
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/{id}/statistics [get]
func (s *Server) GetLivestreamStatistics(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := s.ranking.LivestreamStatistics(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetLivestreamRanking handles GET /api/livestream/ranking?limit=
// @Summary Top livestreams
// @Tags statistics
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {array} object{livestream_id=int,reactions=int,tips=int,score=int}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /livestream/ranking [get]
func (s *Server) GetLivestreamRanking(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	top, err := s.ranking.TopLivestreams(ctx, parseLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(top)
}

// GetPayment handles GET /api/payment
// @Summary Total tips
// @Tags statistics
// @Produce json
// @Success 200 {object} object{total_tip=int}
// @Router /payment [get]
func (s *Server) GetPayment(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	total, err := s.ranking.PaymentResult(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total_tip": total})
}
