package schemacache

import (
	"context"
	"fmt"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// adapterFetcher discovers schemas through the datasource adapter layer.
type adapterFetcher struct {
	connMgr *datasource.ConnectionManager
}

// NewAdapterFetcher creates a SchemaFetcher backed by the connection manager.
func NewAdapterFetcher(connMgr *datasource.ConnectionManager) SchemaFetcher {
	return &adapterFetcher{connMgr: connMgr}
}

var _ SchemaFetcher = (*adapterFetcher)(nil)

func (f *adapterFetcher) FetchSchema(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error) {
	adapter, err := f.connMgr.GetOrCreate(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("get adapter: %w", err)
	}

	tables, err := adapter.DiscoverSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover schema: %w", err)
	}

	return &models.SchemaDescriptor{
		DatabaseKind: string(adapter.Dialect()),
		Tables:       tables,
	}, nil
}
