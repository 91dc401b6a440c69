// Copyright 2023 ShardMesh Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rm is the resource-manager side of the AT integration: it wraps
// raw datasource connections so that write statements executed under a bound
// XID are enlisted as branches with the coordinator. Undo-record generation
// and lock storage stay with the external resource-manager collaborator;
// this package owns the wrapping and registration decision points only.
package rm

import (
	"context"

	"go.uber.org/zap"

	"github.com/shardmesh/shardmesh/pkg/logutil"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

// DataSourceOption options for create DataSourceProxy
type DataSourceOption func(*DataSourceProxy)

// WithDataSourceLogger setup zap logger
func WithDataSourceLogger(logger *zap.Logger) DataSourceOption {
	return func(p *DataSourceProxy) {
		p.logger = logger
	}
}

var _ DataSource = (*DataSourceProxy)(nil)

// DataSourceProxy decorates a raw DataSource so every connection it hands
// out is a *ConnProxy. Wrapping happens once at registry-build time; the
// per-statement registration decision lives on the connection proxy.
type DataSourceProxy struct {
	logger       *zap.Logger
	raw          DataSource
	databaseType DatabaseType
	client       rpc.RMClient
	reporter     *BranchReporter
}

// NewDataSourceProxy wraps a raw datasource.
func NewDataSourceProxy(
	raw DataSource,
	databaseType DatabaseType,
	client rpc.RMClient,
	reporter *BranchReporter,
	options ...DataSourceOption) *DataSourceProxy {
	p := &DataSourceProxy{
		raw:          raw,
		databaseType: databaseType,
		client:       client,
		reporter:     reporter,
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = logutil.Adjust(p.logger).Named("datasource-proxy")
	return p
}

// Connect returns a proxied connection over the raw datasource.
func (p *DataSourceProxy) Connect(ctx context.Context) (Conn, error) {
	raw, err := p.raw.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &ConnProxy{
		logger:     p.logger,
		raw:        raw,
		resourceID: p.raw.ResourceID(),
		client:     p.client,
		reporter:   p.reporter,
	}, nil
}

// ResourceID the raw datasource's resource id.
func (p *DataSourceProxy) ResourceID() string {
	return p.raw.ResourceID()
}

// DatabaseType the dialect of the wrapped datasource.
func (p *DataSourceProxy) DatabaseType() DatabaseType {
	return p.databaseType
}

// Raw the wrapped datasource.
func (p *DataSourceProxy) Raw() DataSource {
	return p.raw
}

func (p *DataSourceProxy) Close() error {
	return p.raw.Close()
}
