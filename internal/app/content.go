package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/scriptrag/pkg/types"
)

// contentDocument is the handoff format written by upstream ingestion. YAML
// is a superset of JSON, so either encoding is accepted.
type contentDocument struct {
	Items []contentEntry `yaml:"items"`
}

type contentEntry struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Text     string         `yaml:"text"`
	Metadata map[string]any `yaml:"metadata"`
}

// ReadContent decodes and validates content items from r
func ReadContent(r io.Reader) ([]*types.ContentItem, error) {
	var doc contentDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	items := make([]*types.ContentItem, 0, len(doc.Items))
	for i, e := range doc.Items {
		typ, err := types.ParseContentType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		item := &types.ContentItem{ID: e.ID, Type: typ, Text: e.Text, Metadata: e.Metadata}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, e.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ReadContentFile reads a content handoff file
func ReadContentFile(path string) ([]*types.ContentItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content file: %w", err)
	}
	defer f.Close()
	return ReadContent(f)
}

// ImportContent upserts items in a single transaction and invalidates cached
// search responses
func (a *App) ImportContent(ctx context.Context, items []*types.ContentItem) (int, error) {
	tx, err := a.Storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := tx.UpsertContent(ctx, item); err != nil {
			return 0, fmt.Errorf("failed to store %s/%s: %w", item.Type, item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit content: %w", err)
	}

	if len(items) > 0 {
		a.Searcher.InvalidateCache()
	}
	a.Logger.Info("content imported", "items", len(items))
	return len(items), nil
}
