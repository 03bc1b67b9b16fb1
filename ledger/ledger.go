// ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TaskStakingABI covers the calls this service makes against the staking
// contract.
const TaskStakingABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_platformWallet","type":"address"},
		{"name":"_minimumStake","type":"uint256"}]},
	{"type":"function","name":"createTask","stateMutability":"payable","inputs":[
		{"name":"_taskId","type":"uint256"},
		{"name":"_deadline","type":"uint256"}],"outputs":[]}
]`

var (
	ErrInvalidAmount = errors.New("invalid stake amount")
	ErrReverted      = errors.New("transaction reverted")
)

// Receipt is the confirmed result of a ledger transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
}

// Client submits value-bearing task creations to the ledger.
type Client interface {
	CreateTask(ctx context.Context, taskID int64, stake decimal.Decimal, deadline *time.Time) (*Receipt, error)
	Close()
}

// ToWei converts an ether-denominated amount into wei. Amounts finer than one
// wei are rejected rather than rounded.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	wei := amount.Shift(18)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than 18 decimals", ErrInvalidAmount, amount)
	}
	return wei.BigInt(), nil
}

// DeadlineSeconds is the on-chain form of a deadline; zero means none.
func DeadlineSeconds(deadline *time.Time) *big.Int {
	if deadline == nil || deadline.IsZero() {
		return big.NewInt(0)
	}
	return big.NewInt(deadline.Unix())
}

// FormatEther renders a wei amount in ether for operator output.
func FormatEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}
