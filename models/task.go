// models/task.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeStatus tracks the on-chain half of task creation.
type StakeStatus string

const (
	StakeStatusNone    StakeStatus = "none"    // ledger integration disabled
	StakeStatusPending StakeStatus = "pending" // row persisted, transaction not confirmed yet
	StakeStatusStaked  StakeStatus = "staked"
	StakeStatusFailed  StakeStatus = "stake_failed"
)

// Task is a unit of work with a stake, an optional deadline and a proof slot.
// IDs are supplied by the caller so they can be mirrored on the ledger as-is.
type Task struct {
	ID           int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title        string          `gorm:"type:varchar(255);not null" json:"title"`
	Description  *string         `gorm:"type:varchar(255)" json:"description"`
	Deadline     *time.Time      `json:"deadline"`
	StakedAmount decimal.Decimal `gorm:"type:numeric;not null" json:"staked_amount"`
	UserAddress  string          `gorm:"type:varchar(255);index;not null" json:"userAddress"`
	Proof        *string         `gorm:"type:text" json:"proof"`
	Verified     bool            `gorm:"not null;default:false" json:"verified"`

	StakeStatus StakeStatus `gorm:"type:varchar(16);not null;default:'none'" json:"stake_status"`
	StakeTxHash *string     `gorm:"type:varchar(80)" json:"stake_tx_hash,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// ProofRecord decodes the stored proof, if any.
func (t *Task) ProofRecord() (*ProofRecord, error) {
	if t.Proof == nil || *t.Proof == "" {
		return nil, nil
	}
	return DecodeProof(*t.Proof)
}
