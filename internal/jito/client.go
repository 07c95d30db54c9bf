// Package jito submits transaction bundles to the Jito block engine and
// follows its landed-tip percentile stream.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
)

// DefaultBundleURLs are the regional block-engine endpoints; SendBundle
// picks one at random per call.
var DefaultBundleURLs = []string{
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://slc.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

var tipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// ErrAlreadyProcessed means the bundle duplicated a transaction that
// already landed; callers can treat it as success.
var ErrAlreadyProcessed = errors.New("bundle contains an already processed transaction")

// BribeInstruction transfers the tip to a random Jito recipient.
func BribeInstruction(from solana.PublicKey, lamports uint64) solana.Instruction {
	to := tipAccounts[rand.Intn(len(tipAccounts))]
	return system.NewTransferInstruction(lamports, from, to).Build()
}

type Client struct {
	urls       []string
	httpClient *http.Client
}

func NewClient(urls []string) *Client {
	if len(urls) == 0 {
		urls = DefaultBundleURLs
	}
	return &Client{
		urls: urls,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendBundle submits signed transactions as one atomic bundle and returns
// the bundle id.
func (c *Client) SendBundle(ctx context.Context, txs []*solana.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("empty bundle")
	}

	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("serialize bundle tx: %w", err)
		}
		encoded = append(encoded, base58.Encode(raw))
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []any{encoded},
	})
	if err != nil {
		return "", err
	}

	url := c.urls[rand.Intn(len(c.urls))]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send bundle: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("send bundle read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("send bundle %s: status=%d body=%q", url, resp.StatusCode, respBody)
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("send bundle decode: %w (body=%q)", err, respBody)
	}
	if out.Error != nil {
		if strings.Contains(out.Error.Message, "already processed") {
			return "", ErrAlreadyProcessed
		}
		return "", fmt.Errorf("send bundle %s: %s", url, out.Error.Message)
	}

	var bundleID string
	if err := json.Unmarshal(out.Result, &bundleID); err != nil {
		return "", fmt.Errorf("send bundle result decode: %w", err)
	}
	return bundleID, nil
}
