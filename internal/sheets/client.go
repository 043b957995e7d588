package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Google Sheets REST endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com"

const requestTimeout = 10 * time.Second

// Client is an authenticated handle onto the Sheets REST API, bound to
// one user's credential snapshot.
type Client struct {
	httpClient *http.Client
	baseURL    string
	// boundToken is the access token the client was built with; the
	// cache compares it to decide whether a rebuild is needed.
	boundToken string
}

// SpreadsheetInfo is the metadata subset the bot needs.
type SpreadsheetInfo struct {
	Title       string
	SheetTitles []string
}

type spreadsheetResponse struct {
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type valuesResponse struct {
	Values [][]any `json:"values"`
}

// Spreadsheet fetches the spreadsheet title and worksheet titles.
func (c *Client) Spreadsheet(ctx context.Context, spreadsheetID string) (*SpreadsheetInfo, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=properties.title,sheets.properties.title",
		c.baseURL, url.PathEscape(spreadsheetID))

	var parsed spreadsheetResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &parsed, spreadsheetID); err != nil {
		return nil, err
	}

	info := &SpreadsheetInfo{Title: parsed.Properties.Title}
	for _, sheet := range parsed.Sheets {
		info.SheetTitles = append(info.SheetTitles, sheet.Properties.Title)
	}
	return info, nil
}

// AddWorksheet creates a worksheet with the given title.
func (c *Client) AddWorksheet(ctx context.Context, spreadsheetID, title string, columns int) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s:batchUpdate", c.baseURL, url.PathEscape(spreadsheetID))
	body := map[string]any{
		"requests": []any{
			map[string]any{
				"addSheet": map[string]any{
					"properties": map[string]any{
						"title": title,
						"gridProperties": map[string]any{
							"rowCount":    1000,
							"columnCount": columns,
						},
					},
				},
			},
		},
	}
	return c.do(ctx, http.MethodPost, endpoint, body, nil, spreadsheetID)
}

// Values reads a range and flattens every cell to its string form.
func (c *Client) Values(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(readRange))

	var parsed valuesResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &parsed, spreadsheetID); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(parsed.Values))
	for _, raw := range parsed.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow appends one row after the data of the named worksheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []string) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetName))

	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	body := map[string]any{"values": []any{row}}
	return c.do(ctx, http.MethodPost, endpoint, body, nil, spreadsheetID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, spreadsheetID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SheetAccessError{Cause: CauseUnknown, SpreadsheetID: spreadsheetID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp, spreadsheetID)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) apiError(resp *http.Response, spreadsheetID string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("sheets API status %d: %s", resp.StatusCode, snippet)

	cause := CauseUnknown
	switch resp.StatusCode {
	case http.StatusNotFound:
		cause = CauseNotFound
	case http.StatusForbidden:
		cause = CausePermission
	case http.StatusUnauthorized:
		cause = CauseUnauthorized
	}
	return &SheetAccessError{Cause: cause, SpreadsheetID: spreadsheetID, Err: err}
}
