package buildium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client talks to the Buildium REST API. Credentials travel in headers; every
// call is scoped by the caller's context.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

func NewFromEnv() *Client {
	base := os.Getenv("BUILDIUM_BASE_URL")
	if base == "" {
		base = "https://api.buildium.com"
	}
	return &Client{
		BaseURL:      base,
		ClientID:     os.Getenv("BUILDIUM_CLIENT_ID"),
		ClientSecret: os.Getenv("BUILDIUM_CLIENT_SECRET"),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError carries the provider's status and raw body so sync failures can be
// stored verbatim on the transaction header.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("buildium: status %d: %s", e.Status, e.Body)
}

// AccountingEntity attributes a line to the company books or to a rental
// property, optionally down to a unit.
type AccountingEntity struct {
	ID                   int64  `json:"Id"`
	AccountingEntityType string `json:"AccountingEntityType"`
	UnitID               *int64 `json:"UnitId,omitempty"`
}

type Line struct {
	GLAccountID      int64            `json:"GLAccountId"`
	Amount           float64          `json:"Amount"`
	Memo             *string          `json:"Memo,omitempty"`
	AccountingEntity AccountingEntity `json:"AccountingEntity"`
}

type BillPayload struct {
	Date     string  `json:"Date"`
	DueDate  *string `json:"DueDate,omitempty"`
	VendorID int64   `json:"VendorId"`
	Memo     *string `json:"Memo,omitempty"`
	Lines    []Line  `json:"Lines"`
}

type CheckPayload struct {
	Date        string  `json:"EntryDate"`
	PayeeID     int64   `json:"PayeeUserId"`
	CheckNumber *string `json:"CheckNumber,omitempty"`
	Memo        *string `json:"Memo,omitempty"`
	Lines       []Line  `json:"Lines"`
}

type DepositPayload struct {
	Date  string  `json:"EntryDate"`
	Memo  *string `json:"Memo,omitempty"`
	Lines []Line  `json:"Lines"`
}

type WithdrawalPayload struct {
	Date   string  `json:"EntryDate"`
	Amount float64 `json:"Amount"`
	Memo   *string `json:"Memo,omitempty"`
}

type TransferPayload struct {
	Date                string  `json:"EntryDate"`
	Amount              float64 `json:"TransferAmount"`
	TargetBankAccountID int64   `json:"TransferToBankAccountId"`
	Memo                *string `json:"Memo,omitempty"`
}

// Created is the slice of every create response we care about.
type Created struct {
	ID int64 `json:"Id"`
}

func (c *Client) CreateBill(ctx context.Context, p BillPayload) (*Created, error) {
	return c.post(ctx, "/v1/bills", p)
}

func (c *Client) CreateCheck(ctx context.Context, bankAccountID int64, p CheckPayload) (*Created, error) {
	return c.post(ctx, fmt.Sprintf("/v1/bankaccounts/%d/checks", bankAccountID), p)
}

func (c *Client) CreateDeposit(ctx context.Context, bankAccountID int64, p DepositPayload) (*Created, error) {
	return c.post(ctx, fmt.Sprintf("/v1/bankaccounts/%d/deposits", bankAccountID), p)
}

func (c *Client) CreateWithdrawal(ctx context.Context, bankAccountID int64, p WithdrawalPayload) (*Created, error) {
	return c.post(ctx, fmt.Sprintf("/v1/bankaccounts/%d/withdrawals", bankAccountID), p)
}

func (c *Client) CreateTransfer(ctx context.Context, bankAccountID int64, p TransferPayload) (*Created, error) {
	return c.post(ctx, fmt.Sprintf("/v1/bankaccounts/%d/transfers", bankAccountID), p)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Created, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-buildium-client-id", c.ClientID)
	req.Header.Set("x-buildium-client-secret", c.ClientSecret)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, &APIError{Status: res.StatusCode, Body: string(body)}
	}

	var out Created
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
