// cmd/smoketest posts a sample task to a running API and prints the reply.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"task-staking-system/logger"
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

type taskPayload struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Deadline     time.Time       `json:"deadline"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
	UserAddress  string          `json:"userAddress"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "API base URL")
	id := flag.Int64("id", 1, "task id")
	address := flag.String("address", "0xAbCd1234EfGh5678IjKl9012MnOp3456QrSt7890", "owner address")
	flag.Parse()

	log := logger.New("smoketest", "info", "text")

	payload := taskPayload{
		ID:           *id,
		Title:        "Test the Backend API",
		Description:  "Make sure the create-task endpoint works.",
		Deadline:     time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second),
		StakedAmount: decimal.RequireFromString("0.5"),
		UserAddress:  *address,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Fatal("encode payload")
	}

	log.Info("🧪 Starting test: attempting to create a new task...")
	resp, err := httpClient.Post(*baseURL+"/create-task", "application/json", bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Fatal("request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Fatal("read response")
	}
	log.Infof("Response status: %d", resp.StatusCode)
	log.Infof("Response body: %s", raw)

	if resp.StatusCode != http.StatusCreated {
		log.Fatal("❌ Test FAILED! Server responded with an error.")
	}
	log.Info("✅ Test PASSED! Server responded with success.")
}
