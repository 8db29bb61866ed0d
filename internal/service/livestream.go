package service

import (
	"context"
	"log/slog"

	"isupipe/internal/models"
	"isupipe/internal/observability"
	"isupipe/internal/repository"
	"isupipe/internal/validation"

	"gorm.io/gorm"
)

// ReserveInput schedules a livestream in a reservation window.
type ReserveInput struct {
	UserID       uint
	Title        string
	Description  string
	PlaylistURL  string
	ThumbnailURL string
	StartAt      int64
	EndAt        int64
	TagIDs       []uint
}

type PostCommentInput struct {
	UserID       uint
	LivestreamID uint
	Comment      string
	Tip          int64
}

type PostReactionInput struct {
	UserID       uint
	LivestreamID uint
	EmojiName    string
}

type ReportCommentInput struct {
	UserID        uint
	LivestreamID  uint
	LivecommentID uint
}

// LivestreamRepos groups the repositories LivestreamService reads and writes.
type LivestreamRepos struct {
	Users        repository.UserRepository
	Livestreams  repository.LivestreamRepository
	Livecomments repository.LivecommentRepository
	Reactions    repository.ReactionRepository
	Reports      repository.ReportRepository
	Viewers      repository.ViewerRepository
	Tags         repository.TagRepository
}

// LivestreamService runs the viewer and owner actions on livestreams. Every
// mutating action is one unit of work on the aggregate manager.
type LivestreamService struct {
	repos      LivestreamRepos
	manager    *AggregateManager
	allocator  *SlotAllocator
	moderation *ModerationService
	events     EventPublisher
	logger     *slog.Logger
}

func NewLivestreamService(
	repos LivestreamRepos,
	manager *AggregateManager,
	allocator *SlotAllocator,
	moderation *ModerationService,
	events EventPublisher,
	logger *slog.Logger,
) *LivestreamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LivestreamService{
		repos:      repos,
		manager:    manager,
		allocator:  allocator,
		moderation: moderation,
		events:     events,
		logger:     logger,
	}
}

// Reserve takes capacity in the window and creates the livestream in the same transaction.
func (s *LivestreamService) Reserve(ctx context.Context, in ReserveInput) (*models.Livestream, error) {
	ctx, finish := observability.StartSpan(ctx, "livestream.reserve", spanAttrs(in.UserID, 0)...)

	window := Window{StartAt: in.StartAt, EndAt: in.EndAt}
	if in.Title == "" {
		err := models.NewValidationError("title is required")
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
		finish(err)
		return nil, err
	}
	if err := validateMedia(in); err != nil {
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
		finish(err)
		return nil, err
	}
	if err := s.allocator.Validate(window); err != nil {
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
		finish(err)
		return nil, err
	}

	tagIDs := uniqueIDs(in.TagIDs)
	var livestream *models.Livestream
	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		if err := s.allocator.ReserveWindow(ctx, tx, window); err != nil {
			return err
		}

		tags, err := s.repos.Tags.WithTx(tx).GetByIDs(ctx, tagIDs)
		if err != nil {
			return err
		}
		if len(tags) != len(tagIDs) {
			return models.NewValidationError("unknown tag id")
		}

		livestream = &models.Livestream{
			UserID:       in.UserID,
			Title:        in.Title,
			Description:  in.Description,
			PlaylistURL:  in.PlaylistURL,
			ThumbnailURL: in.ThumbnailURL,
			StartAt:      in.StartAt,
			EndAt:        in.EndAt,
			Tags:         tags,
		}
		if err := s.repos.Livestreams.WithTx(tx).Create(ctx, livestream); err != nil {
			return err
		}
		w.Touch(LivestreamTarget(livestream.ID))
		return nil
	})
	switch {
	case err == nil:
		observability.ReservationsTotal.WithLabelValues("reserved").Inc()
	case models.IsCode(err, models.CodeOverbooked):
		observability.ReservationsTotal.WithLabelValues("overbooked").Inc()
	case models.IsCode(err, models.CodeValidation):
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
	default:
		observability.ReservationsTotal.WithLabelValues("failed").Inc()
	}
	finish(err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "livestream reserved",
		slog.Uint64("livestream_id", uint64(livestream.ID)),
		slog.Int64("start_at", in.StartAt),
		slog.Int64("end_at", in.EndAt),
	)
	return livestream, nil
}

// PostComment stores a livecomment with its tip unless it contains a banned word.
func (s *LivestreamService) PostComment(ctx context.Context, in PostCommentInput) (*models.Livecomment, error) {
	ctx, finish := observability.StartSpan(ctx, "livestream.post_comment", spanAttrs(in.UserID, in.LivestreamID)...)

	if in.Comment == "" {
		err := models.NewValidationError("comment is required")
		finish(err)
		return nil, err
	}
	if in.Tip < 0 {
		err := models.NewValidationError("tip must not be negative")
		finish(err)
		return nil, err
	}

	var comment *models.Livecomment
	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.repos.Livestreams.WithTx(tx).GetByID(ctx, in.LivestreamID)
		if err != nil {
			return err
		}
		if err := s.moderation.CheckComment(ctx, tx, livestream.ID, in.Comment); err != nil {
			return err
		}

		comment = &models.Livecomment{
			UserID:       in.UserID,
			LivestreamID: livestream.ID,
			Comment:      in.Comment,
			Tip:          in.Tip,
		}
		if err := s.repos.Livecomments.WithTx(tx).Create(ctx, comment); err != nil {
			return err
		}

		if err := w.ApplyDelta(ctx, LivestreamTarget(livestream.ID), repository.Delta{
			TotalTip: in.Tip,
			Score:    in.Tip,
			MaxTip:   in.Tip,
		}); err != nil {
			return err
		}
		if err := w.ApplyDelta(ctx, UserTarget(livestream.UserID), repository.Delta{
			TotalLivecomments: 1,
			TotalTip:          in.Tip,
			Score:             in.Tip,
		}); err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventLivecomment, comment)
		return nil
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// PostReaction stores a reaction and credits the livestream and its owner.
func (s *LivestreamService) PostReaction(ctx context.Context, in PostReactionInput) (*models.Reaction, error) {
	ctx, finish := observability.StartSpan(ctx, "livestream.post_reaction", spanAttrs(in.UserID, in.LivestreamID)...)

	if verr := validation.ValidateEmojiName(in.EmojiName); verr != nil {
		err := models.NewValidationError(verr.Error())
		finish(err)
		return nil, err
	}

	var reaction *models.Reaction
	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.repos.Livestreams.WithTx(tx).GetByID(ctx, in.LivestreamID)
		if err != nil {
			return err
		}

		reaction = &models.Reaction{UserID: in.UserID, LivestreamID: livestream.ID, EmojiName: in.EmojiName}
		if err := s.repos.Reactions.WithTx(tx).Create(ctx, reaction); err != nil {
			return err
		}

		credit := repository.Delta{TotalReactions: 1, Score: 1}
		if err := w.ApplyDelta(ctx, LivestreamTarget(livestream.ID), credit); err != nil {
			return err
		}
		if err := w.ApplyDelta(ctx, UserTarget(livestream.UserID), credit); err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventReaction, reaction)
		return nil
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	return reaction, nil
}

// ReportComment files a spam report on a livecomment of the livestream.
func (s *LivestreamService) ReportComment(ctx context.Context, in ReportCommentInput) (*models.LivecommentReport, error) {
	ctx, finish := observability.StartSpan(ctx, "livestream.report_comment", spanAttrs(in.UserID, in.LivestreamID)...)

	var report *models.LivecommentReport
	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.repos.Livestreams.WithTx(tx).GetByID(ctx, in.LivestreamID)
		if err != nil {
			return err
		}
		comment, err := s.repos.Livecomments.WithTx(tx).GetByID(ctx, in.LivecommentID)
		if err != nil {
			return err
		}
		if comment.LivestreamID != livestream.ID {
			return models.NewNotFoundError("Livecomment", in.LivecommentID)
		}

		report = &models.LivecommentReport{
			UserID:        in.UserID,
			LivestreamID:  livestream.ID,
			LivecommentID: comment.ID,
		}
		if err := s.repos.Reports.WithTx(tx).Create(ctx, report); err != nil {
			return err
		}
		if err := w.ApplyDelta(ctx, LivestreamTarget(livestream.ID), repository.Delta{TotalReports: 1}); err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventReport, report)
		return nil
	})
	finish(err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Enter records the user as a viewer.
func (s *LivestreamService) Enter(ctx context.Context, userID, livestreamID uint) error {
	ctx, finish := observability.StartSpan(ctx, "livestream.enter", spanAttrs(userID, livestreamID)...)

	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.repos.Livestreams.WithTx(tx).GetByID(ctx, livestreamID)
		if err != nil {
			return err
		}
		if err := s.repos.Viewers.WithTx(tx).Enter(ctx, userID, livestream.ID); err != nil {
			return err
		}
		if err := s.shiftViewers(ctx, w, livestream, 1); err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventViewers, map[string]any{"user_id": userID, "delta": 1})
		return nil
	})
	finish(err)
	return err
}

// Exit removes the user's viewer rows. Exiting without having entered changes nothing.
func (s *LivestreamService) Exit(ctx context.Context, userID, livestreamID uint) error {
	ctx, finish := observability.StartSpan(ctx, "livestream.exit", spanAttrs(userID, livestreamID)...)

	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.repos.Livestreams.WithTx(tx).GetByID(ctx, livestreamID)
		if err != nil {
			return err
		}
		removed, err := s.repos.Viewers.WithTx(tx).Exit(ctx, userID, livestream.ID)
		if err != nil || removed == 0 {
			return err
		}
		if err := s.shiftViewers(ctx, w, livestream, -removed); err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventViewers, map[string]any{"user_id": userID, "delta": -removed})
		return nil
	})
	finish(err)
	return err
}

func (s *LivestreamService) shiftViewers(ctx context.Context, w *Writer, livestream *models.Livestream, n int64) error {
	if err := w.ApplyDelta(ctx, LivestreamTarget(livestream.ID), repository.Delta{ViewersCount: n}); err != nil {
		return err
	}
	return w.ApplyDelta(ctx, UserTarget(livestream.UserID), repository.Delta{ViewersCount: n})
}

// Get returns the livestream snapshot, read through the cache.
func (s *LivestreamService) Get(ctx context.Context, id uint) (*models.Livestream, error) {
	return s.manager.Reader().Livestream(ctx, id)
}

// ListByUser lists the livestreams owned by the named user.
func (s *LivestreamService) ListByUser(ctx context.Context, username string) ([]*models.Livestream, error) {
	user, err := s.repos.Users.GetByName(ctx, username)
	if err != nil {
		return nil, err
	}
	return storeResult(s.repos.Livestreams.ListByUser(ctx, user.ID))
}

// Search lists livestreams by tag name; an empty tag lists the newest.
func (s *LivestreamService) Search(ctx context.Context, tag string, limit int) ([]*models.Livestream, error) {
	if limit < 0 {
		return nil, models.NewValidationError("limit must not be negative")
	}
	return storeResult(s.repos.Livestreams.Search(ctx, tag, limit))
}

func (s *LivestreamService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return storeResult(s.repos.Tags.ListAll(ctx))
}

func (s *LivestreamService) ListComments(ctx context.Context, livestreamID uint, limit int) ([]*models.Livecomment, error) {
	if _, err := s.repos.Livestreams.GetByID(ctx, livestreamID); err != nil {
		return nil, err
	}
	return storeResult(s.repos.Livecomments.ListByLivestream(ctx, livestreamID, limit))
}

func (s *LivestreamService) ListReactions(ctx context.Context, livestreamID uint, limit int) ([]*models.Reaction, error) {
	if _, err := s.repos.Livestreams.GetByID(ctx, livestreamID); err != nil {
		return nil, err
	}
	return storeResult(s.repos.Reactions.ListByLivestream(ctx, livestreamID, limit))
}

// ListReports lists the reports filed on a livestream. Owner only.
func (s *LivestreamService) ListReports(ctx context.Context, userID, livestreamID uint) ([]*models.LivecommentReport, error) {
	livestream, err := s.repos.Livestreams.GetByID(ctx, livestreamID)
	if err != nil {
		return nil, err
	}
	if livestream.UserID != userID {
		return nil, models.NewForbiddenError("only the livestream owner can list reports")
	}
	return storeResult(s.repos.Reports.ListByLivestream(ctx, livestreamID))
}

func storeResult[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, models.AsStoreFailure(err)
	}
	return v, nil
}

func validateMedia(in ReserveInput) error {
	if err := validation.ValidateMediaURL("playlist_url", in.PlaylistURL); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateMediaURL("thumbnail_url", in.ThumbnailURL); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
