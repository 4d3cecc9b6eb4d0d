// Package users — service.go содержит бизнес-логику учёта пользователей.
package users

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/common"
)

// Service управляет пользователями и их балансом.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис пользователей.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetUser возвращает пользователя, создавая запись при первом контакте.
// Деактивированный пользователь не может начинать операции —
// возвращается ErrUserNotActive.
func (s *Service) GetUser(ctx context.Context, userID int64, username, firstName, lastName string) (*User, error) {
	user, err := s.repo.GetOrCreate(ctx, userID, username, firstName, lastName)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("%w (user_id=%d)", common.ErrUserNotActive, userID)
	}
	return user, nil
}

// GetUserAny возвращает пользователя без проверки активности.
// Нужен админке: деактивированных тоже надо уметь находить.
func (s *Service) GetUserAny(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Debit списывает стоимость вызова модели с баланса пользователя.
// Баланс может уходить в минус — это включает дневные квоты,
// но само по себе ничего не блокирует.
func (s *Service) Debit(ctx context.Context, userID int64, cost float64) error {
	if cost <= 0 {
		return nil
	}
	if err := s.repo.AdjustCharge(ctx, userID, -cost); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"cost":    cost,
	}).Debug("Списание за вызов модели")
	return nil
}

// AdminAdjustCharge пополняет (или корректирует) баланс. Только для админки.
func (s *Service) AdminAdjustCharge(ctx context.Context, userID int64, delta float64) error {
	if err := s.repo.AdjustCharge(ctx, userID, delta); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"delta":   delta,
	}).Info("Админ изменил баланс")
	return nil
}

// SetActive включает/выключает пользователя. Только для админки.
func (s *Service) SetActive(ctx context.Context, userID int64, active bool) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"active":  active,
	}).Info("Админ сменил активность пользователя")
	return nil
}

// DamageReport возвращает сводку потребления пользователя.
func (s *Service) DamageReport(ctx context.Context, userID int64) (*UsageReport, error) {
	return s.repo.UsageReport(ctx, userID)
}
