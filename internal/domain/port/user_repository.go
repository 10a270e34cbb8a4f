package port

import (
	"context"

	"car-inspect/internal/domain/entity"
)

// UserRepository интерфейс хранилища пользователей бота
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя
	Save(ctx context.Context, user *entity.User) error

	// FinishInspection привязывает отчёт к пользователю и возвращает его в меню
	FinishInspection(ctx context.Context, userID int64, reportID string) error
}
