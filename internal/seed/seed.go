// Package seed provides database seeding utilities for initialization, development and testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"isupipe/internal/middleware"
	"isupipe/internal/models"
	"isupipe/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every generated demo user.
const DemoPassword = "password123"

// DefaultTags are the tags livestreams can be reserved with.
var DefaultTags = []string{
	"ライブ配信", "ゲーム実況", "生放送", "アドバイス", "初心者歓迎",
	"プロゲーマー", "新作ゲーム", "レトロゲーム", "RPG", "FPS",
	"アクションゲーム", "対戦ゲーム", "マルチプレイ", "シングルプレイ", "ゲーム解説",
	"ホラーゲーム", "イベント生放送", "新情報発表", "Q&Aセッション", "チャット交流",
	"視聴者参加", "音楽ライブ", "カバーソング", "オリジナル楽曲", "アコースティック",
	"歌配信", "楽器演奏", "ギター", "ピアノ", "バンドセッション",
	"DJセット", "トーク配信", "朝活", "夜ふかし", "日常話",
	"趣味の話", "語学学習", "お料理配信", "手料理", "レシピ紹介",
	"アート配信", "絵描き", "DIY", "手芸", "アニメトーク",
	"映画レビュー", "読書感想", "ファッション", "メイク", "ビューティー",
	"健康", "ワークアウト", "ヨガ", "ダンス", "旅行記",
	"アウトドア", "キャンプ", "ペットと一緒", "猫", "犬",
	"科学", "技術", "プログラミング", "自作PC", "ガジェット紹介",
	"ライフハック", "教育", "歴史", "ミステリー", "心霊",
	"ニュース解説", "政治経済", "スポーツ観戦", "サッカー", "野球",
	"バスケットボール", "ライフスタイル", "ママ向け", "ビジネス", "起業",
	"投資", "マネー", "VTuber", "コスプレ", "ASMR",
	"雑談", "コラボ配信", "記念配信", "耐久配信", "深夜配信",
	"リスナー参加型", "企画配信", "雑学", "クイズ", "占い",
	"恋愛相談", "Vlog", "グルメ", "ドライブ", "作業配信",
	"勉強配信", "ゲーム大会", "初見プレイ", "リベンジ", "やりこみ",
}

// Options configures a seeding run.
type Options struct {
	TermStart    time.Time
	TermEnd      time.Time
	SlotCapacity int64
	NumUsers     int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Result reports what a run created or found.
type Result struct {
	Slots int
	Tags  int
	Users []*models.User
}

// Seeder populates reservation slots, tags and demo users. Every step is idempotent.
type Seeder struct {
	db    *gorm.DB
	slots repository.SlotRepository
	tags  repository.TagRepository
	users repository.UserRepository
}

// NewSeeder creates a Seeder on top of the repositories for db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:    db,
		slots: repository.NewSlotRepository(db),
		tags:  repository.NewTagRepository(db),
		users: repository.NewUserRepository(db),
	}
}

// Run seeds slots and tags, then NumUsers demo users.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}

	slots, err := HourlySlots(opts.TermStart, opts.TermEnd, opts.SlotCapacity)
	if err != nil {
		return nil, err
	}
	if err := s.slots.Seed(ctx, slots); err != nil {
		return nil, fmt.Errorf("seed slots: %w", err)
	}
	res.Slots = len(slots)

	if err := s.tags.Seed(ctx, DefaultTags); err != nil {
		return nil, fmt.Errorf("seed tags: %w", err)
	}
	res.Tags = len(DefaultTags)

	if opts.NumUsers > 0 {
		users, err := s.DemoUsers(ctx, opts.NumUsers, opts.BcryptCost)
		if err != nil {
			return nil, err
		}
		res.Users = users
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("slots", res.Slots),
		slog.Int("tags", res.Tags),
		slog.Int("users", len(res.Users)),
	)
	return res, nil
}

// HourlySlots cuts [start, end) into one-hour windows with the given capacity.
func HourlySlots(start, end time.Time, capacity int64) ([]models.ReservationSlot, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("seed slots: term start %s is not before end %s", start, end)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("seed slots: negative capacity %d", capacity)
	}

	var slots []models.ReservationSlot
	for at := start; at.Before(end); at = at.Add(time.Hour) {
		next := at.Add(time.Hour)
		if next.After(end) {
			next = end
		}
		slots = append(slots, models.ReservationSlot{
			Slot:    capacity,
			StartAt: at.Unix(),
			EndAt:   next.Unix(),
		})
	}
	return slots, nil
}

// DemoUsers creates n users with generated profiles sharing DemoPassword.
func (s *Seeder) DemoUsers(ctx context.Context, n, cost int) ([]*models.User, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	users := make([]*models.User, 0, n)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		for i := 0; i < n; i++ {
			user := &models.User{
				Name:        fmt.Sprintf("%s_%d_%d", gofakeit.Username(), gofakeit.Number(1000, 999999), i),
				DisplayName: gofakeit.Name(),
				Description: gofakeit.Sentence(8),
				Password:    string(hash),
			}
			if err := repo.Create(ctx, user); err != nil {
				return fmt.Errorf("create demo user: %w", err)
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}
