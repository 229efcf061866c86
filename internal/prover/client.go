package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
)

// defaultTimeout — генерация proof'а занимает минуты.
const defaultTimeout = 10 * time.Minute

// Client — HTTP-клиент внешнего prover-сервиса.
//
// Сервис принимает платежи/proof'ы в JSON и отвечает конвертом
// {success, error_message, ...}: неуспех — это отказ сервиса,
// невалидный proof при verify — отдельное поле valid.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient создаёт клиент prover-сервиса.
// Таймаут берётся из PROVER_TIMEOUT_SEC (default: 10 минут).
func NewClient(baseURL string) *Client {
	timeout := defaultTimeout
	if v := os.Getenv("PROVER_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			timeout = time.Duration(sec) * time.Second
		}
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// proveRequest — запрос генерации proof'а.
type proveRequest struct {
	Payments []domain.SignedPayment `json:"payments"`
}

// proveResponse — ответ генерации proof'а.
type proveResponse struct {
	Success       bool                  `json:"success"`
	Proof         string                `json:"proof"`
	PublicSignals *domain.PublicSignals `json:"public_signals"`
	ErrorMessage  string                `json:"error_message,omitempty"`
}

// verifyRequest — запрос проверки proof'а.
type verifyRequest struct {
	Proof domain.PaymentProof `json:"proof"`
}

// verifyResponse — ответ проверки proof'а.
type verifyResponse struct {
	Success      bool   `json:"success"`
	Valid        bool   `json:"valid"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Prove запрашивает у сервиса proof над набором платежей.
func (c *Client) Prove(ctx context.Context, payments []domain.SignedPayment) (*domain.PaymentProof, error) {
	var resp proveResponse
	if err := c.post(ctx, "/v1/prove", proveRequest{Payments: payments}, &resp); err != nil {
		return nil, err
	}

	if !resp.Success || resp.PublicSignals == nil {
		return nil, fmt.Errorf("%w: %s", ErrProverUnavailable, resp.ErrorMessage)
	}
	return &domain.PaymentProof{
		Proof:         resp.Proof,
		PublicSignals: *resp.PublicSignals,
	}, nil
}

// Verify запрашивает у сервиса проверку proof'а.
func (c *Client) Verify(ctx context.Context, proof *domain.PaymentProof) error {
	var resp verifyResponse
	if err := c.post(ctx, "/v1/verify", verifyRequest{Proof: *proof}, &resp); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrProverUnavailable, resp.ErrorMessage)
	}
	if !resp.Valid {
		return fmt.Errorf("%w: nonces %d-%d", ErrProofInvalid,
			proof.PublicSignals.MinNonce, proof.PublicSignals.MaxNonce)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProverUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProverUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
