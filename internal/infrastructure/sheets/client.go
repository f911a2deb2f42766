package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CommunityInsights/internal/domain"
)

// Actions understood by the Apps Script web app.
const (
	actionGetIDs       = "getIds"
	actionGetSheetData = "getSheetData"
	actionSaveData     = "saveData"
	actionUpdateStatus = "updateStatus"
)

// StatusColumn is the only column the remote store can update in place.
const StatusColumn = "status"

var (
	// ErrColumnMismatch rejects rows whose width differs from the sheet header.
	ErrColumnMismatch = errors.New("row width does not match sheet header")
	// ErrRemote wraps an {"error": ...} body returned by the store.
	ErrRemote = errors.New("remote store error")
)

// Client talks to the spreadsheet web app; every call is a single request.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient wires the web app endpoint with a per-request timeout.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type response struct {
	ExistingIDs json.RawMessage `json:"existingIds"`
	SheetData   json.RawMessage `json:"sheetData"`
	Created     json.RawMessage `json:"created"`
	Success     json.RawMessage `json:"success"`
	Error       json.RawMessage `json:"error"`
}

// GetExistingIDs returns the ids stored in sheet. Failures degrade to an empty set.
func (c *Client) GetExistingIDs(ctx context.Context, sheet string) map[string]struct{} {
	ids := make(map[string]struct{})

	resp, err := c.do(ctx, http.MethodGet, actionGetIDs, sheet, nil)
	if err != nil {
		c.logger.Error("fetch existing ids", "sheet", sheet, "error", err)
		return ids
	}

	var raw []any
	if err := decodeField(resp.ExistingIDs, &raw); err != nil {
		c.logger.Error("unexpected existing ids payload", "sheet", sheet, "error", err)
		return ids
	}
	for _, v := range raw {
		if id := strings.TrimSpace(cellString(v)); id != "" {
			ids[id] = struct{}{}
		}
	}

	c.logger.Debug("existing ids loaded", "sheet", sheet, "count", len(ids))
	return ids
}

// GetAllRows returns every data row of sheet, header excluded. Failures
// degrade to no rows.
func (c *Client) GetAllRows(ctx context.Context, sheet string) [][]string {
	resp, err := c.do(ctx, http.MethodGet, actionGetSheetData, sheet, nil)
	if err != nil {
		c.logger.Error("fetch sheet rows", "sheet", sheet, "error", err)
		return nil
	}

	var raw [][]any
	if err := decodeField(resp.SheetData, &raw); err != nil {
		c.logger.Error("unexpected sheet data payload", "sheet", sheet, "error", err)
		return nil
	}

	rows := make([][]string, 0, len(raw))
	for _, r := range raw {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return rows
}

// AppendRows appends rows to sheet and returns the count the store reports.
func (c *Client) AppendRows(ctx context.Context, sheet string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	width := len(domain.HeaderFor(sheet))
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("%w: sheet %s row %d has %d cells, want %d", ErrColumnMismatch, sheet, i, len(row), width)
		}
	}

	resp, err := c.do(ctx, http.MethodPost, actionSaveData, sheet, map[string]any{"data": rows})
	if err != nil {
		return 0, fmt.Errorf("append rows to %s: %w", sheet, err)
	}

	var created json.Number
	if err := decodeField(resp.Created, &created); err != nil {
		return 0, fmt.Errorf("append rows to %s: %w", sheet, err)
	}
	n, err := strconv.Atoi(created.String())
	if err != nil {
		return 0, fmt.Errorf("append rows to %s: created count %q: %w", sheet, created, err)
	}

	c.logger.Debug("rows appended", "sheet", sheet, "sent", len(rows), "created", n)
	return n, nil
}

// UpdateCell sets column of the first row whose id equals key. Only the
// status column is supported by the remote store.
func (c *Client) UpdateCell(ctx context.Context, sheet, key, column, value string) bool {
	if column != StatusColumn {
		c.logger.Warn("unsupported column update", "sheet", sheet, "column", column)
		return false
	}

	body := map[string]string{"postId": key, "newStatus": value}
	resp, err := c.do(ctx, http.MethodPost, actionUpdateStatus, sheet, body)
	if err != nil {
		c.logger.Error("update status", "sheet", sheet, "id", key, "error", err)
		return false
	}

	var ok bool
	if err := decodeField(resp.Success, &ok); err != nil {
		c.logger.Error("unexpected update payload", "sheet", sheet, "id", key, "error", err)
		return false
	}
	if !ok {
		c.logger.Warn("status not updated", "sheet", sheet, "id", key)
	}
	return ok
}

func (c *Client) do(ctx context.Context, method, action, sheet string, payload any) (response, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return response{}, fmt.Errorf("parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("action", action)
	query.Set("sheet", sheet)
	endpoint.RawQuery = query.Encode()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("marshal %s payload: %w", action, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return response{}, fmt.Errorf("%s: store returned %s: %s", action, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("%s: decode response: %w", action, err)
	}
	if msg, ok := errorMessage(out.Error); ok {
		return response{}, fmt.Errorf("%w: %s: %s", ErrRemote, action, msg)
	}
	return out, nil
}

func decodeField(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("field missing")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg, true
	}
	return string(raw), true
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}
