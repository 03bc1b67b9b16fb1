package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-staking-system/logger"
)

// stopCode is a contract body that accepts any call and value.
var stopCode = []byte{0x00}

var contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newSimulated(t *testing.T) (*simulated.Backend, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	funds := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
		contractAddr:                          {Code: stopCode, Balance: new(big.Int)},
	})
	t.Cleanup(func() { backend.Close() })
	return backend, key
}

// autoCommit seals a block every few milliseconds until the test ends.
func autoCommit(t *testing.T, backend *simulated.Backend) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
}

func TestEthClientCreateTaskStakes(t *testing.T) {
	backend, key := newSimulated(t)
	ctx := context.Background()

	client, err := NewEthClient(ctx, backend.Client(), contractAddr, key, 30*time.Second, logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	autoCommit(t, backend)

	deadline := time.Unix(1767225600, 0)
	receipt, err := client.CreateTask(ctx, 7, decimal.RequireFromString("0.5"), &deadline)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TxHash)
	assert.NotZero(t, receipt.BlockNumber)

	balance, err := backend.Client().BalanceAt(ctx, contractAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", balance.String())
}

func TestEthClientCreateTaskConfirmTimeout(t *testing.T) {
	backend, key := newSimulated(t)
	ctx := context.Background()

	// nothing seals blocks, so the transaction never confirms
	client, err := NewEthClient(ctx, backend.Client(), contractAddr, key, 200*time.Millisecond, logger.Discard())
	require.NoError(t, err)

	_, err = client.CreateTask(ctx, 8, decimal.RequireFromString("0.01"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrReverted))
}

func TestEthClientRejectsInvalidStake(t *testing.T) {
	backend, key := newSimulated(t)

	client, err := NewEthClient(context.Background(), backend.Client(), contractAddr, key, time.Second, logger.Discard())
	require.NoError(t, err)

	_, err = client.CreateTask(context.Background(), 9, decimal.RequireFromString("-1"), nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestReceiptResult(t *testing.T) {
	hash := common.HexToHash("0x01")

	_, err := receiptResult(&types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash})
	assert.ErrorIs(t, err, ErrReverted)
	assert.ErrorContains(t, err, hash.Hex())

	r, err := receiptResult(&types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(12)})
	require.NoError(t, err)
	assert.Equal(t, hash.Hex(), r.TxHash)
	assert.Equal(t, uint64(12), r.BlockNumber)
}
