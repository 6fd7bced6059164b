// Package webapp talks to a spreadsheet-bound web app that exposes the ledger
// as a JSON array: GET returns the log, POST replaces it.
package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brunance/internal/core"
	ports "brunance/internal/sheets"
)

// maxBody caps the size of a pulled log.
const maxBody = 16 << 20

type Client struct {
	url  string
	http *http.Client
}

var _ ports.Remote = (*Client)(nil)

// New returns a client for url. A nil hc uses a client with a 30s timeout.
func New(url string, hc *http.Client) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: missing web app url", ports.ErrNotConfigured)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, http: hc}, nil
}

// envelope is the alternative response shape {"transactions": [...]}.
type envelope struct {
	Transactions []core.Transaction `json:"transactions"`
}

func (c *Client) Pull(ctx context.Context) ([]core.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull ledger: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull ledger: unexpected status %d", resp.StatusCode)
	}
	return decode(body)
}

func decode(body []byte) ([]core.Transaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var txs []core.Transaction
	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
		txs = env.Transactions
	} else if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}

	out := txs[:0]
	for _, tx := range txs {
		if strings.TrimSpace(tx.ID) == "" {
			continue
		}
		tx.Synced = true
		out = append(out, tx)
	}
	return out, nil
}

func (c *Client) Push(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	payload, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push ledger: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New("push ledger: unexpected status " + resp.Status)
	}
	return nil
}
