package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"brunance/internal/core"
	ports "brunance/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab holding the ledger log.
const DefaultSheetName = "Transacciones"

// lastColumn is the rightmost column written by encodeRows.
const lastColumn = "L"

// Config selects the spreadsheet and credentials. CredentialsJSON wins over
// CredentialsFile; when both are empty GOOGLE_APPLICATION_CREDENTIALS is used.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client mirrors the ledger into a single spreadsheet tab.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// held are the rows the last Pull could not decode. Push writes them
	// back so a hand edit is never erased before someone fixes it.
	mu   sync.Mutex
	held []RowError
}

var _ ports.Remote = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials, which lets tests point the
// client at a local server.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%w: missing spreadsheet id", ports.ErrNotConfigured)
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials. When opts are given and no credentials are configured, the
// options alone are used.
func newSheetsService(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	case len(opts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	var all []goption.ClientOption
	if credentialsJSON != nil {
		all = append(all,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		)
	}
	all = append(all, opts...)

	service, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) rangeA1(cells string) string {
	return fmt.Sprintf("'%s'!%s", c.sheetName, cells)
}

// Pull reads the whole ledger tab. Rows that fail to decode are logged,
// left out of the result and held for the next Push, so one bad hand edit
// neither blocks synchronization nor gets lost.
func (c *Client) Pull(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeA1("A:"+lastColumn)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	txs, rowErrs := parseRows(resp.Values)
	for _, re := range rowErrs {
		slog.WarnContext(ctx, "Holding unreadable ledger row",
			"sheet", c.sheetName, "row", re.Row, "error", re.Err)
	}
	c.mu.Lock()
	c.held = rowErrs
	c.mu.Unlock()
	slog.DebugContext(ctx, "Pulled ledger", "sheet", c.sheetName, "transactions", len(txs))
	return txs, nil
}

// Push replaces the tab contents with txs followed by the rows held from the
// last Pull. A held row whose id is in txs is dropped: the local entry wins.
// The clear and the write are two calls; a failure in between leaves the tab
// empty until the next push.
func (c *Client) Push(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rangeA1("A:"+lastColumn), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	rows := encodeRows(txs)
	held := c.heldRows(txs)
	rows = append(rows, held...)

	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rangeA1("A1"), vr).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	slog.DebugContext(ctx, "Pushed ledger", "sheet", c.sheetName, "transactions", len(txs), "held", len(held))
	return nil
}

func (c *Client) heldRows(txs []core.Transaction) [][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.held) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		ids[tx.ID] = struct{}{}
	}
	var out [][]any
	for _, re := range c.held {
		id := strings.TrimSpace(fmt.Sprint(re.Cells[colID]))
		if _, ok := ids[id]; ok && id != "" {
			continue
		}
		out = append(out, re.Cells)
	}
	return out
}
