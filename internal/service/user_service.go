package service

import (
	"context"

	"github.com/google/uuid"

	"shop-flow/internal/model"
	"shop-flow/internal/repository"
)

type UserService interface {
	List(ctx context.Context) ([]model.User, error)
	RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceToken string) error
	Notifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type userService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
}

func NewUserService(users repository.UserRepository, notifications repository.NotificationRepository) UserService {
	return &userService{users: users, notifications: notifications}
}

func (s *userService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *userService) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceToken string) error {
	return s.users.RegisterDeviceToken(ctx, userID, deviceToken)
}

func (s *userService) Notifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

func (s *userService) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	return s.notifications.MarkRead(ctx, id, userID)
}
