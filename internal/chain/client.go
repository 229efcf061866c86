package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
)

const defaultRPCTimeout = 15 * time.Second

// Client — ledger поверх HTTP JSON RPC.
type Client struct {
	baseURL string
	program string
	http    *http.Client
}

// NewClient создаёт клиент ledger'а.
//
// baseURL — адрес RPC (переменная LEDGER_RPC_URL в cmd), program —
// адрес программы зачисления (LEDGER_CLAIM_PROGRAM).
func NewClient(baseURL, program string) *Client {
	return &Client{
		baseURL: baseURL,
		program: program,
		http:    &http.Client{Timeout: defaultRPCTimeout},
	}
}

// ClientFromEnv собирает Client из окружения; nil, если RPC не задан.
func ClientFromEnv() *Client {
	url := os.Getenv("LEDGER_RPC_URL")
	if url == "" {
		return nil
	}
	return NewClient(url, os.Getenv("LEDGER_CLAIM_PROGRAM"))
}

// BuildClaimInstruction собирает инструкцию claim из proof'а.
func (c *Client) BuildClaimInstruction(proof *domain.PaymentProof) (*Instruction, error) {
	return buildClaim(c.program, proof)
}

// TokenBalance запрашивает баланс платёжного аккаунта у RPC.
func (c *Client) TokenBalance(ctx context.Context, account string) (uint64, error) {
	reqBody, err := json.Marshal(map[string]string{"account": account})
	if err != nil {
		return 0, fmt.Errorf("marshal balance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/balance", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("build balance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrLedgerUnavailable, resp.StatusCode)
	}

	var out struct {
		Balance uint64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode balance response: %w", err)
	}
	return out.Balance, nil
}

// Offline — ledger для разработки: строит инструкции локально,
// баланс всегда нулевой.
type Offline struct {
	program string
}

// NewOffline создаёт Offline ledger.
func NewOffline(program string) *Offline {
	return &Offline{program: program}
}

// BuildClaimInstruction собирает инструкцию claim из proof'а.
func (o *Offline) BuildClaimInstruction(proof *domain.PaymentProof) (*Instruction, error) {
	return buildClaim(o.program, proof)
}

// TokenBalance возвращает ноль: без RPC баланса нет.
func (o *Offline) TokenBalance(context.Context, string) (uint64, error) {
	return 0, nil
}

var (
	_ Ledger = (*Client)(nil)
	_ Ledger = (*Offline)(nil)
)
