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

	"github.com/go-sql-driver/mysql"

	"github.com/shardmesh/shardmesh/pkg/common/smerr"
)

// DatabaseType dialect spoken by a datasource. The resource-manager
// collaborator needs it to shape undo records.
type DatabaseType int32

const (
	DatabaseTypeMySQL DatabaseType = iota
	DatabaseTypePostgreSQL
	DatabaseTypeSQLServer
	DatabaseTypeOracle
)

var databaseTypeNames = map[DatabaseType]string{
	DatabaseTypeMySQL:      "MySQL",
	DatabaseTypePostgreSQL: "PostgreSQL",
	DatabaseTypeSQLServer:  "SQLServer",
	DatabaseTypeOracle:     "Oracle",
}

func (t DatabaseType) String() string {
	if n, ok := databaseTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// Result mirrors the sql.Result contract.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Conn is the connection contract the routing engine executes statements
// over. One Conn serves one in-flight execution context at a time.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// DataSource produces connections against one physical database instance.
type DataSource interface {
	// Connect obtains a connection. May block on pool checkout.
	Connect(ctx context.Context) (Conn, error)
	// ResourceID is the stable identifier this datasource registers branches
	// under, credentials stripped.
	ResourceID() string
	Close() error
}

// sqlDataSource adapts a *sql.DB to the DataSource contract.
type sqlDataSource struct {
	db         *sql.DB
	resourceID string
}

// NewSQLDataSource adapts a *sql.DB. The resource id is derived from the
// DSN; for MySQL the DSN is parsed and credentials are dropped so the id is
// safe to send to the coordinator.
func NewSQLDataSource(db *sql.DB, databaseType DatabaseType, dsn string) (DataSource, error) {
	if db == nil {
		return nil, smerr.NewInvalidInput(context.Background(), "nil *sql.DB")
	}
	resourceID, err := resourceIDFromDSN(databaseType, dsn)
	if err != nil {
		return nil, err
	}
	return &sqlDataSource{db: db, resourceID: resourceID}, nil
}

func resourceIDFromDSN(databaseType DatabaseType, dsn string) (string, error) {
	if dsn == "" {
		return "", smerr.NewInvalidInput(context.Background(), "empty dsn")
	}
	if databaseType != DatabaseTypeMySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", smerr.NewInvalidInput(context.Background(), "bad mysql dsn: %s", err)
	}
	return "mysql://" + cfg.Addr + "/" + cfg.DBName, nil
}

func (ds *sqlDataSource) Connect(ctx context.Context) (Conn, error) {
	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConn{conn: conn}, nil
}

func (ds *sqlDataSource) ResourceID() string {
	return ds.resourceID
}

func (ds *sqlDataSource) Close() error {
	return ds.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *sqlConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}
