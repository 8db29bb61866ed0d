package service

import (
	"context"
	"log/slog"
	"strings"

	"isupipe/internal/featureflags"
	"isupipe/internal/models"
	"isupipe/internal/observability"
	"isupipe/internal/repository"
	"isupipe/internal/validation"

	"gorm.io/gorm"
)

// RegisterWordInput registers a banned word on a livestream.
type RegisterWordInput struct {
	UserID       uint
	LivestreamID uint
	Word         string
}

// ModerationService rejects comments containing banned words and purges
// existing comments when a word is registered.
type ModerationService struct {
	manager     *AggregateManager
	ngwords     repository.NGWordRepository
	comments    repository.LivecommentRepository
	livestreams repository.LivestreamRepository
	flags       *featureflags.Manager
	events      EventPublisher
	logger      *slog.Logger
}

func NewModerationService(
	manager *AggregateManager,
	ngwords repository.NGWordRepository,
	comments repository.LivecommentRepository,
	livestreams repository.LivestreamRepository,
	flags *featureflags.Manager,
	events EventPublisher,
	logger *slog.Logger,
) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		manager:     manager,
		ngwords:     ngwords,
		comments:    comments,
		livestreams: livestreams,
		flags:       flags,
		events:      events,
		logger:      logger,
	}
}

// CheckComment returns SPAM when text contains any banned word of the
// livestream as a case-sensitive substring.
func (s *ModerationService) CheckComment(ctx context.Context, tx *gorm.DB, livestreamID uint, text string) error {
	words, err := s.ngwords.WithTx(tx).Words(ctx, livestreamID)
	if err != nil {
		return err
	}
	for _, word := range words {
		if strings.Contains(text, word) {
			observability.ModerationEvents.WithLabelValues("spam_rejected").Inc()
			return models.NewSpamError()
		}
	}
	return nil
}

// RegisterBannedWord stores word for the livestream and deletes every existing
// comment containing it in the same transaction. Only the livestream owner may
// call it. With moderation_backout enabled the purged comments' tips and
// counts are subtracted from the livestream and owner; max_tip is kept.
func (s *ModerationService) RegisterBannedWord(ctx context.Context, in RegisterWordInput) (*models.NGWord, error) {
	ctx, finish := observability.StartSpan(ctx, "moderation.register_word", spanAttrs(in.UserID, in.LivestreamID)...)

	if verr := validation.ValidateNGWord(in.Word); verr != nil {
		err := models.NewValidationError(verr.Error())
		finish(err)
		return nil, err
	}

	var word *models.NGWord
	var purged []*models.Livecomment
	backout := s.flags.On(featureflags.ModerationBackout)

	err := s.manager.Run(ctx, func(tx *gorm.DB, w *Writer) error {
		livestream, err := s.livestreams.WithTx(tx).GetByID(ctx, in.LivestreamID)
		if err != nil {
			return err
		}
		if livestream.UserID != in.UserID {
			return models.NewForbiddenError("only the livestream owner can register ng words")
		}

		word = &models.NGWord{UserID: in.UserID, LivestreamID: in.LivestreamID, Word: in.Word}
		if err := s.ngwords.WithTx(tx).Create(ctx, word); err != nil {
			return err
		}

		comments := s.comments.WithTx(tx)
		purged, err = comments.FindContaining(ctx, in.LivestreamID, in.Word)
		if err != nil {
			return err
		}
		publishAfterCommit(w, s.events, s.logger, livestream.ID, EventModeration, map[string]any{
			"word":   in.Word,
			"purged": len(purged),
		})
		if len(purged) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(purged))
		var tips int64
		for _, c := range purged {
			ids = append(ids, c.ID)
			tips += c.Tip
		}
		if _, err := comments.DeleteByIDs(ctx, ids); err != nil {
			return err
		}

		if !backout {
			return nil
		}
		if err := w.ApplyDelta(ctx, LivestreamTarget(livestream.ID), repository.Delta{
			TotalTip: -tips,
			Score:    -tips,
		}); err != nil {
			return err
		}
		return w.ApplyDelta(ctx, UserTarget(livestream.UserID), repository.Delta{
			TotalTip:          -tips,
			Score:             -tips,
			TotalLivecomments: -int64(len(purged)),
		})
	})
	if err != nil {
		finish(err)
		return nil, err
	}

	observability.ModerationEvents.WithLabelValues("word_registered").Inc()
	observability.ModerationEvents.WithLabelValues("comment_purged").Add(float64(len(purged)))
	s.logger.InfoContext(ctx, "ng word registered",
		slog.Uint64("livestream_id", uint64(in.LivestreamID)),
		slog.Int("purged", len(purged)),
		slog.Bool("backout", backout),
	)
	finish(nil)
	return word, nil
}

// ListBannedWords lists the words the user registered on the livestream.
func (s *ModerationService) ListBannedWords(ctx context.Context, userID, livestreamID uint) ([]*models.NGWord, error) {
	if _, err := s.livestreams.GetByID(ctx, livestreamID); err != nil {
		return nil, err
	}
	words, err := s.ngwords.ListByLivestream(ctx, userID, livestreamID)
	if err != nil {
		return nil, models.NewStoreFailure(err)
	}
	return words, nil
}
