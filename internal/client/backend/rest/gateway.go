package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
)

func (c *Client) tableURL(table string, filter backend.Filter, extra url.Values) string {
	q := url.Values{}
	for _, col := range filter.Columns() {
		q.Set(col, fmt.Sprintf("eq.%v", filter[col]))
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) Select(ctx context.Context, table string, filter backend.Filter, order backend.Order, dest any) error {
	extra := url.Values{"select": {"*"}}
	if order.Column != "" {
		dir := "asc"
		if order.Descending {
			dir = "desc"
		}
		extra.Set("order", order.Column+"."+dir)
	}

	resp, err := c.do(ctx, http.MethodGet, c.tableURL(table, filter, extra), nil, "")
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("select %s: %w", table, statusError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) Count(ctx context.Context, table string, filter backend.Filter) (int, error) {
	resp, err := c.do(ctx, http.MethodHead, c.tableURL(table, filter, url.Values{"select": {"*"}}), nil, "count=exact")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("count %s: %w", table, statusError(resp))
	}

	// Content-Range: 0-24/3573 (or */0 when empty)
	cr := resp.Header.Get("Content-Range")
	slash := strings.LastIndexByte(cr, '/')
	if slash < 0 {
		return 0, fmt.Errorf("count %s: malformed Content-Range %q", table, cr)
	}
	n, err := strconv.Atoi(cr[slash+1:])
	if err != nil {
		return 0, fmt.Errorf("count %s: malformed Content-Range %q", table, cr)
	}
	return n, nil
}

func (c *Client) Insert(ctx context.Context, table string, row any, dest any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.tableURL(table, nil, nil), body, "return=representation")
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("insert %s: %w", table, statusError(resp))
	}
	if dest == nil {
		return nil
	}

	// representation comes back as a one-element array
	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("insert %s: empty representation", table)
	}
	return json.Unmarshal(rows[0], dest)
}

func (c *Client) Update(ctx context.Context, table string, filter backend.Filter, delta map[string]any) (int64, error) {
	body, err := json.Marshal(delta)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, http.MethodPatch, c.tableURL(table, filter, nil), body, "return=representation")
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("update %s: %w", table, statusError(resp))
	}
	return affectedRows(resp)
}

func (c *Client) Delete(ctx context.Context, table string, filter backend.Filter) (int64, error) {
	resp, err := c.do(ctx, http.MethodDelete, c.tableURL(table, filter, nil), nil, "return=representation")
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("delete %s: %w", table, statusError(resp))
	}
	return affectedRows(resp)
}

func affectedRows(resp *http.Response) (int64, error) {
	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
