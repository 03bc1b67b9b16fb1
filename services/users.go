// services/users.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"task-staking-system/models"
	"task-staking-system/storage"
)

type UserService struct {
	store    storage.Store
	log      *logrus.Entry
	validate *validator.Validate
}

func NewUserService(store storage.Store, log *logrus.Entry) *UserService {
	return &UserService{
		store:    store,
		log:      log.WithField("component", "users"),
		validate: newValidator(),
	}
}

type createUserInput struct {
	UserAddress string `json:"userAddress" validate:"required,max=255"`
}

// CreateUser registers address with an empty profile. Addresses are stored
// exactly as given.
func (s *UserService) CreateUser(ctx context.Context, address string) (*models.User, error) {
	if strings.TrimSpace(address) == "" {
		return nil, invalid("userAddress is required")
	}
	if err := s.validate.Struct(createUserInput{UserAddress: address}); err != nil {
		return nil, validationError(err)
	}

	u := &models.User{
		UserAddress: address,
		Badges:      pq.StringArray{},
		TotalSpent:  decimal.Zero,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user %s", ErrConflict, address)
		}
		return nil, external("create user", err)
	}

	s.log.WithField("user_address", address).Info("user registered")
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, address string) (*models.User, error) {
	if strings.TrimSpace(address) == "" {
		return nil, invalid("address is required")
	}
	u, err := s.store.GetUser(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, external("load user", err)
	}
	return u, nil
}
