// cmd/deploy deploys the TaskStaking contract from a forge artifact.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"task-staking-system/config"
	"task-staking-system/ledger"
	"task-staking-system/logger"
)

func main() {
	config.LoadDotEnv()

	var (
		artifactPath = flag.String("artifact", "contracts/out/TaskStaking.sol/TaskStaking.json", "forge artifact with abi and bytecode")
		rpcURL       = flag.String("rpc", envOr("LEDGER_RPC_URL", "http://127.0.0.1:8545"), "ledger JSON-RPC endpoint")
		keyHex       = flag.String("key", os.Getenv("DEPLOYER_PRIVATE_KEY"), "deployer private key (hex)")
		platform     = flag.String("platform-wallet", os.Getenv("PLATFORM_WALLET_ADDRESS"), "address receiving platform fees")
		minStake     = flag.String("min-stake", "0.01", "minimum stake in ether")
		timeout      = flag.Duration("timeout", 2*time.Minute, "how long to wait for the deployment to be mined")
	)
	flag.Parse()

	log := logger.New("deploy", "info", "text")

	if *keyHex == "" {
		log.Fatal("DEPLOYER_PRIVATE_KEY (or -key) is required")
	}
	if !common.IsHexAddress(*platform) {
		log.Fatalf("invalid platform wallet %q", *platform)
	}
	stake, err := decimal.NewFromString(*minStake)
	if err != nil {
		log.WithError(err).Fatal("invalid -min-stake")
	}
	minStakeWei, err := ledger.ToWei(stake)
	if err != nil {
		log.WithError(err).Fatal("invalid -min-stake")
	}

	artifact, err := ledger.LoadArtifact(*artifactPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load artifact")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deployer, err := ledger.NewDeployer(ctx, *rpcURL, *keyHex)
	if err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	defer deployer.Close()

	balance, err := deployer.Balance(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to read deployer balance")
	}
	log.Infof("Deployer address: %s", deployer.Address.Hex())
	log.Infof("Deployer balance: %s ETH", ledger.FormatEther(balance))
	log.WithFields(logrus.Fields{
		"platform_wallet": *platform,
		"minimum_stake":   stake.String() + " ETH",
	}).Info("Deploying TaskStaking contract...")

	deployment, err := deployer.Deploy(ctx, artifact, func(h common.Hash) {
		log.Infof("Transaction sent! Hash: %s", h.Hex())
		log.Info("Waiting for transaction to be mined...")
	}, common.HexToAddress(*platform), minStakeWei)
	if err != nil {
		log.WithError(err).Fatal("Deployment failed")
	}

	log.Info("✅ Contract deployed successfully!")
	log.Infof("Contract Address: %s", deployment.Address.Hex())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
