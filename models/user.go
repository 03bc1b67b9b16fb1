// models/user.go
package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User is a registered account keyed by its ledger address.
type User struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	UserAddress string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"userAddress"`
	Badges      pq.StringArray  `gorm:"type:text[]" json:"badges"`
	Streak      int             `gorm:"not null;default:0" json:"streak"`
	TotalSpent  decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"total_spent"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// HasBadge reports whether code was already awarded.
func (u *User) HasBadge(code string) bool {
	for _, b := range u.Badges {
		if b == code {
			return true
		}
	}
	return false
}
