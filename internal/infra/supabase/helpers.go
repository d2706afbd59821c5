package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// ============================================================
// HTTP helpers for GET, POST, PATCH, DELETE
// ============================================================

const (
	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
	preferUpsert         = "resolution=merge-duplicates,return=minimal"
)

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, table, data, preferRepresentation)
}

// doUpsert inserts data or merges it into the row with the same primary key.
func (c *Client) doUpsert(ctx context.Context, table string, data any) error {
	_, err := c.send(ctx, http.MethodPost, table, data, preferUpsert)
	return err
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	_, err := c.send(ctx, http.MethodPatch, path, data, preferMinimal)
	return err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil, preferMinimal)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, data any, prefer string) ([]byte, error) {
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, method, path, bytes.NewReader(jsonBody), prefer)
}

// eq builds a PostgREST equality filter with an escaped value.
func eq(column, value string) string {
	return column + "=eq." + url.QueryEscape(value)
}

// in builds a PostgREST membership filter.
func in(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return column + "=in.(" + url.QueryEscape(strings.Join(quoted, ",")) + ")"
}
