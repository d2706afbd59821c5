package source

import (
	"context"
	"fmt"
	"os"
)

// File reads outage records from a JSON file, as written by the scraper.
// The file is re-read on every fetch so external updates are picked up.
type File struct {
	path string
}

// NewFile returns a source over the JSON file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Name implements port.OutageSource.
func (f *File) Name() string { return "file" }

// FetchOutages implements port.OutageSource.
func (f *File) FetchOutages(ctx context.Context) ([]map[string]any, error) {
	_, span := tracer.Start(ctx, "File.FetchOutages")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read outages file %s: %w", f.path, err)
	}
	return decodeRecords(body)
}
