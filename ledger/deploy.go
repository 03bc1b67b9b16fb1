// ledger/deploy.go
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Artifact is a compiled contract as written by forge (out/<Name>.sol/<Name>.json).
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode struct {
		Object string `json:"object"`
	} `json:"bytecode"`
}

func LoadArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(raw)
}

func ParseArtifact(raw []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(f.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}
	parsed, err := abi.JSON(strings.NewReader(string(f.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse artifact abi: %w", err)
	}
	code := common.FromHex(f.Bytecode.Object)
	if len(code) == 0 {
		return nil, errors.New("artifact has no bytecode")
	}
	return &Artifact{ABI: parsed, Bytecode: code}, nil
}

// Deployment is the outcome of a confirmed contract deployment.
type Deployment struct {
	Address common.Address
	TxHash  common.Hash
}

// Deployer signs and sends contract deployments.
type Deployer struct {
	rpc     *ethclient.Client
	opts    *bind.TransactOpts
	Address common.Address
}

func NewDeployer(ctx context.Context, rpcURL, hexKey string) (*Deployer, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	return &Deployer{rpc: rpc, opts: opts, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (d *Deployer) Balance(ctx context.Context) (*big.Int, error) {
	return d.rpc.BalanceAt(ctx, d.Address, nil)
}

// Deploy sends the creation transaction and blocks until it is mined or ctx
// expires.
func (d *Deployer) Deploy(ctx context.Context, a *Artifact, onSent func(common.Hash), params ...any) (*Deployment, error) {
	opts := *d.opts
	opts.Context = ctx

	_, tx, _, err := bind.DeployContract(&opts, a.ABI, a.Bytecode, d.rpc, params...)
	if err != nil {
		return nil, fmt.Errorf("send deployment: %w", err)
	}
	if onSent != nil {
		onSent(tx.Hash())
	}

	addr, err := bind.WaitDeployed(ctx, d.rpc, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for deployment: %w", err)
	}
	return &Deployment{Address: addr, TxHash: tx.Hash()}, nil
}

func (d *Deployer) Close() {
	d.rpc.Close()
}
