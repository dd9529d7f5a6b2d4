package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/and161185/troubleshooter/internal/backend"
)

const returnRepresentation = "return=representation"

// Select runs a PostgREST read.
func (c *Client) Select(ctx context.Context, table string, q backend.Query) ([]json.RawMessage, error) {
	vals := filterValues(q.Filters)
	vals.Set("select", selectClause(q))
	if q.Order != nil {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		vals.Set("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	var rows []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  vals,
		token:  c.accessToken(ctx),
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert creates rows and returns the stored representation.
func (c *Client) Insert(ctx context.Context, table string, rows []backend.Row) ([]json.RawMessage, error) {
	if len(rows) == 0 {
		return []json.RawMessage{}, nil
	}
	var out []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(table),
		body:   rows,
		header: http.Header{"Prefer": {returnRepresentation}},
		token:  c.accessToken(ctx),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches rows matching filters; the count is the number of rows returned.
func (c *Client) Update(ctx context.Context, table string, patch backend.Row, filters ...backend.Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, errors.New("supabase: update without filters")
	}
	return c.mutate(ctx, http.MethodPatch, table, patch, filters)
}

// Delete removes rows matching filters; the count is the number of rows returned.
func (c *Client) Delete(ctx context.Context, table string, filters ...backend.Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, errors.New("supabase: delete without filters")
	}
	return c.mutate(ctx, http.MethodDelete, table, nil, filters)
}

func (c *Client) mutate(ctx context.Context, method, table string, body any, filters []backend.Filter) (int64, error) {
	vals := filterValues(filters)
	vals.Set("select", "id")
	var out []json.RawMessage
	err := c.do(ctx, request{
		method: method,
		path:   tablePath(table),
		query:  vals,
		body:   body,
		header: http.Header{"Prefer": {returnRepresentation}},
		token:  c.accessToken(ctx),
	}, &out)
	if err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func tablePath(table string) string { return "/rest/v1/" + url.PathEscape(table) }

func selectClause(q backend.Query) string {
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	parts := []string{cols}
	for _, e := range q.Embed {
		parts = append(parts, e+"(*)")
	}
	return strings.Join(parts, ",")
}

func filterValues(filters []backend.Filter) url.Values {
	vals := url.Values{}
	for _, f := range filters {
		vals.Add(f.Column, "eq."+f.Value)
	}
	return vals
}
