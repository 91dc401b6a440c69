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

package rm

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/shardmesh/shardmesh/pkg/txn/rootctx"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

var _ Conn = (*ConnProxy)(nil)

// ConnProxy decorates a raw connection. Branch registration is lazy and per
// statement: only a write statement executed while an XID is bound pays the
// registration round trip. Without a bound XID every call passes straight
// through.
type ConnProxy struct {
	logger     *zap.Logger
	raw        Conn
	resourceID string
	client     rpc.RMClient
	reporter   *BranchReporter
}

func (c *ConnProxy) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	xid := rootctx.XID(ctx)
	if xid == "" || !isWriteStatement(query) {
		return c.raw.ExecContext(ctx, query, args...)
	}
	return c.execBranch(ctx, xid, query, args)
}

func (c *ConnProxy) execBranch(ctx context.Context, xid string, query string, args []any) (Result, error) {
	appData, compressed := maybeCompressAppData([]byte(query))
	resp, err := c.client.BranchRegister(ctx, &rpc.BranchRegisterRequest{
		XID:               xid,
		ResourceID:        c.resourceID,
		BranchType:        rpc.BranchTypeAT,
		LockKeys:          lockKeysOf(query),
		ApplicationData:   appData,
		AppDataCompressed: compressed,
	})
	if err != nil {
		// registration failure fails the statement, no retry at this layer
		return nil, err
	}
	c.logger.Debug("branch registered for statement",
		zap.String("xid", xid),
		zap.Int64("branch-id", resp.BranchID),
		zap.String("resource", c.resourceID))

	result, execErr := c.raw.ExecContext(ctx, query, args...)
	status := rpc.BranchStatusPhaseOneDone
	if execErr != nil {
		status = rpc.BranchStatusPhaseOneFailed
	}
	c.reporter.Report(&rpc.BranchReportRequest{
		XID:        xid,
		BranchID:   resp.BranchID,
		ResourceID: c.resourceID,
		Status:     status,
	})
	return result, execErr
}

func (c *ConnProxy) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.raw.QueryContext(ctx, query, args...)
}

// Raw the wrapped connection.
func (c *ConnProxy) Raw() Conn {
	return c.raw
}

func (c *ConnProxy) Close() error {
	return c.raw.Close()
}
