package services

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"task-staking-system/models"
)

type BadgeService struct {
	log *logrus.Entry
}

func NewBadgeService(log *logrus.Entry) *BadgeService {
	return &BadgeService{log: log.WithField("component", "badges")}
}

// AutoAwardBadges checks all badge triggers against the user's current
// progress and adds the ones not yet held. Badges are never taken away.
func (s *BadgeService) AutoAwardBadges(u *models.User) []string {
	var awarded []string
	for _, trigger := range models.BadgeTriggers {
		if u.HasBadge(trigger.Code) || !s.meetsThreshold(u, trigger.Threshold) {
			continue
		}
		u.Badges = append(u.Badges, trigger.Code)
		awarded = append(awarded, trigger.Code)
		s.log.WithFields(logrus.Fields{
			"badge":        trigger.Name,
			"user_address": u.UserAddress,
		}).Info("🎖️ badge awarded")
	}
	if len(awarded) > 0 {
		sort.Strings(u.Badges)
	}
	return awarded
}

func (s *BadgeService) meetsThreshold(u *models.User, req map[string]int64) bool {
	for key, required := range req {
		switch key {
		case "streak":
			if int64(u.Streak) < required {
				return false
			}
		case "total_spent":
			if u.TotalSpent.LessThan(decimal.NewFromInt(required)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
