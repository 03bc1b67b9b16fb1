// ledger/eth.go
package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"task-staking-system/config"
)

// Backend is the node surface EthClient needs. *ethclient.Client and the
// simulated backend's client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthClient talks to an EVM JSON-RPC endpoint with a single signing key.
type EthClient struct {
	backend        Backend
	contract       *bind.BoundContract
	key            *ecdsa.PrivateKey
	chainID        *big.Int
	confirmTimeout time.Duration
	closer         func()
	log            *logrus.Entry
}

// Dial connects to the ledger described by cfg.
func Dial(ctx context.Context, cfg config.LedgerConfig, log *logrus.Entry) (*EthClient, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}
	c, err := NewEthClient(ctx, rpc, common.HexToAddress(cfg.ContractAddress), key, cfg.ConfirmTimeout, log)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closer = rpc.Close
	return c, nil
}

// NewEthClient binds the staking contract at address on backend.
func NewEthClient(ctx context.Context, backend Backend, address common.Address, key *ecdsa.PrivateKey, confirmTimeout time.Duration, log *logrus.Entry) (*EthClient, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(TaskStakingABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}

	return &EthClient{
		backend:        backend,
		contract:       bind.NewBoundContract(address, parsed, backend, backend, backend),
		key:            key,
		chainID:        chainID,
		confirmTimeout: confirmTimeout,
		log:            log.WithField("contract", address.Hex()),
	}, nil
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func (c *EthClient) CreateTask(ctx context.Context, taskID int64, stake decimal.Decimal, deadline *time.Time) (*Receipt, error) {
	value, err := ToWei(stake)
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = value

	tx, err := c.contract.Transact(opts, "createTask", big.NewInt(taskID), DeadlineSeconds(deadline))
	if err != nil {
		return nil, fmt.Errorf("submit createTask: %w", err)
	}
	c.log.WithFields(logrus.Fields{"task_id": taskID, "tx": tx.Hash().Hex()}).Info("createTask submitted")

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	return receiptResult(receipt)
}

// receiptResult maps a mined receipt to the caller's view. A mined but
// failed transaction is ErrReverted.
func receiptResult(r *types.Receipt) (*Receipt, error) {
	if r.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrReverted, r.TxHash.Hex())
	}
	out := &Receipt{TxHash: r.TxHash.Hex()}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out, nil
}

func (c *EthClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}
