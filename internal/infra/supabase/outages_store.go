package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// OutagesTable reads the outages table as an outage source.
type OutagesTable struct {
	client *Client
	limit  int
}

// NewOutagesTable returns an outage source over the outages table. At most
// limit rows, newest first, are read per fetch.
func NewOutagesTable(client *Client, limit int) *OutagesTable {
	if limit <= 0 {
		limit = 500
	}
	return &OutagesTable{client: client, limit: limit}
}

// Name implements port.OutageSource.
func (t *OutagesTable) Name() string { return "supabase" }

// FetchOutages returns the raw rows; column naming is left to normalization.
func (t *OutagesTable) FetchOutages(ctx context.Context) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchOutages")
	defer span.End()

	var rows []map[string]any
	err := t.client.call(ctx, "outages", func() error {
		path := fmt.Sprintf("outages?select=*&order=start_time.desc.nullslast&limit=%d", t.limit)
		body, err := t.client.doGet(ctx, path)
		if err != nil {
			return err
		}
		if isEmpty(body) {
			rows = []map[string]any{}
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&rows); err != nil {
			return fmt.Errorf("decode outages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("outages.count", len(rows)))
	return rows, nil
}
