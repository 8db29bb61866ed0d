package service

import (
	"context"
	"strings"

	"isupipe/internal/models"
	"isupipe/internal/repository"
	"isupipe/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Name        string
	DisplayName string
	Description string
	Password    string
	DarkMode    bool
}

type UserService struct {
	userRepo   repository.UserRepository
	reader     EntityReader
	bcryptCost int
}

// NewUserService builds the account service. reader serves user snapshots by id.
func NewUserService(userRepo repository.UserRepository, reader EntityReader) *UserService {
	return &UserService{userRepo: userRepo, reader: reader, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost lowers the hashing cost, for tests and seeding.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateUsername(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.userRepo.GetByName(ctx, in.Name); err == nil {
		return nil, models.NewValidationError("name is already taken")
	} else if !models.IsCode(err, models.CodeNotFound) {
		return nil, models.AsStoreFailure(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Password:    string(hash),
		DarkMode:    in.DarkMode,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, models.AsStoreFailure(err)
	}
	return user, nil
}

// Authenticate checks the password. Unknown names and wrong passwords fail alike.
func (s *UserService) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	user, err := s.userRepo.GetByName(ctx, name)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("invalid username or password")
		}
		return nil, models.AsStoreFailure(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("invalid username or password")
	}
	return user, nil
}

func (s *UserService) GetByName(ctx context.Context, name string) (*models.User, error) {
	user, err := s.userRepo.GetByName(ctx, name)
	if err != nil {
		return nil, models.AsStoreFailure(err)
	}
	return user, nil
}

// GetMe returns the signed-in user's snapshot.
func (s *UserService) GetMe(ctx context.Context, userID uint) (*models.User, error) {
	return s.reader.User(ctx, userID)
}
