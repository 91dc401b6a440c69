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

// Package seata implements the client-side lifecycle of Seata-style global
// transactions in automatic compensation (AT) mode: local SQL commits
// immediately, the coordinator later decides per global transaction whether
// branches stay committed or are compensated. The manager here registers the
// TM and RM roles, opens and finishes global transactions through the
// injected role clients, and hands out proxied connections that enlist
// branches while an XID is bound to the execution context.
package seata

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/shardmesh/shardmesh/pkg/common/smerr"
	"github.com/shardmesh/shardmesh/pkg/logutil"
	"github.com/shardmesh/shardmesh/pkg/txn/rm"
	"github.com/shardmesh/shardmesh/pkg/txn/rootctx"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

const (
	defaultTxServiceGroup = "default_tx_group"
	defaultTimeoutSeconds = 60

	clientVersion = "1.5.0"
)

type managerState int32

const (
	stateUninitialized managerState = iota
	stateInitialized
	stateClosed
)

// Option options for create ATTransactionManager
type Option func(*ATTransactionManager)

// WithLogger setup zap logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *ATTransactionManager) {
		m.logger = logger
	}
}

// WithTransactionServiceGroup set the transaction service group announced to
// the coordinator.
func WithTransactionServiceGroup(group string) Option {
	return func(m *ATTransactionManager) {
		m.txServiceGroup = group
	}
}

// WithDefaultBeginTimeout set the coordinator-side timeout used by Begin
// when the caller does not pass one.
func WithDefaultBeginTimeout(seconds int32) Option {
	return func(m *ATTransactionManager) {
		m.defaultTimeout = seconds
	}
}

// BeginOption options for Begin
type BeginOption func(*beginOptions)

type beginOptions struct {
	timeoutSeconds int32
	name           string
}

// WithBeginTimeout carry a timeout to the coordinator; once it expires the
// coordinator unilaterally rolls the global transaction back.
func WithBeginTimeout(seconds int32) BeginOption {
	return func(o *beginOptions) {
		o.timeoutSeconds = seconds
	}
}

// WithTransactionName name the global transaction for coordinator-side
// diagnostics.
func WithTransactionName(name string) BeginOption {
	return func(o *beginOptions) {
		o.name = name
	}
}

// ATTransactionManager is the façade the routing engine drives global
// transactions through. Role clients are injected so tests can substitute an
// in-process coordinator. All methods are safe for concurrent use; the XID
// and handle bindings are per execution context, never shared.
type ATTransactionManager struct {
	logger         *zap.Logger
	tmClient       rpc.TMClient
	rmClient       rpc.RMClient
	txServiceGroup string
	defaultTimeout int32

	tm struct {
		sync.Mutex
		registered bool
	}

	mu struct {
		sync.RWMutex
		state         managerState
		applicationID string
		reporter      *rm.BranchReporter
		dataSources   map[string]*rm.DataSourceProxy
	}
}

// NewATTransactionManager create an AT transaction manager over the given
// role clients. Init must be called before any other operation.
func NewATTransactionManager(tmClient rpc.TMClient, rmClient rpc.RMClient, options ...Option) *ATTransactionManager {
	m := &ATTransactionManager{tmClient: tmClient, rmClient: rmClient}
	for _, opt := range options {
		opt(m)
	}
	m.adjust()
	return m
}

func (m *ATTransactionManager) adjust() {
	m.logger = logutil.Adjust(m.logger).Named("seata-at")
	if m.txServiceGroup == "" {
		m.txServiceGroup = defaultTxServiceGroup
	}
	if m.defaultTimeout <= 0 {
		m.defaultTimeout = defaultTimeoutSeconds
	}
	if m.tmClient == nil || m.rmClient == nil {
		panic("missing coordinator role clients")
	}
}

// Init wraps every raw datasource in a proxy, builds the immutable
// datasource registry and registers the RM role. Idempotent per instance;
// binds no XID and creates no handle.
func (m *ATTransactionManager) Init(
	ctx context.Context,
	databaseTypes map[string]rm.DatabaseType,
	dataSources map[string]rm.DataSource,
	applicationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mu.state {
	case stateClosed:
		return smerr.NewManagerClosed(ctx)
	case stateInitialized:
		return nil
	}
	if applicationID == "" {
		return smerr.NewBadConfig(ctx, "empty application id")
	}

	reporter, err := rm.NewBranchReporter(m.rmClient, rm.WithReporterLogger(m.logger))
	if err != nil {
		return err
	}

	proxies := make(map[string]*rm.DataSourceProxy, len(dataSources))
	resourceIDs := make([]string, 0, len(dataSources))
	for name, ds := range dataSources {
		databaseType, ok := databaseTypes[name]
		if !ok {
			reporter.Close()
			return smerr.NewBadConfig(ctx, "missing database type for datasource %s", name)
		}
		proxies[name] = rm.NewDataSourceProxy(ds, databaseType, m.rmClient, reporter,
			rm.WithDataSourceLogger(m.logger))
		resourceIDs = append(resourceIDs, ds.ResourceID())
	}

	resp, err := m.rmClient.RegisterResource(ctx, &rpc.RegisterRMRequest{
		ApplicationID:           applicationID,
		TransactionServiceGroup: m.txServiceGroup,
		ResourceIDs:             resourceIDs,
	})
	if err != nil {
		reporter.Close()
		return err
	}
	if !resp.Identified {
		reporter.Close()
		return smerr.NewRoleRegisterRejected(ctx, "RM", resp.Message)
	}

	m.mu.applicationID = applicationID
	m.mu.reporter = reporter
	m.mu.dataSources = proxies
	m.mu.state = stateInitialized
	m.logger.Info("transaction manager initialized",
		zap.String("application", applicationID),
		zap.String("group", m.txServiceGroup),
		zap.Int("datasources", len(proxies)))
	return nil
}

// TransactionType always BASE, the compensating AT style.
func (m *ATTransactionManager) TransactionType() TransactionType {
	return TransactionTypeBase
}

// GetConnection returns a proxied connection for the datasource registered
// under <logicalDB>.<physicalInstance>.
func (m *ATTransactionManager) GetConnection(ctx context.Context, logicalDB, physicalInstance string) (rm.Conn, error) {
	key := logicalDB + "." + physicalInstance

	m.mu.RLock()
	if state := m.mu.state; state != stateInitialized {
		m.mu.RUnlock()
		return nil, stateError(ctx, state)
	}
	proxy, ok := m.mu.dataSources[key]
	m.mu.RUnlock()
	if !ok {
		return nil, smerr.NewDataSourceNotFound(ctx, key)
	}
	return proxy.Connect(ctx)
}

// Begin opens a global transaction: lazily registers the TM role on first
// use, asks the coordinator for an XID, then binds handle and XID into the
// returned context. A context already in transaction joins the existing
// global transaction without another coordinator round trip.
func (m *ATTransactionManager) Begin(ctx context.Context, options ...BeginOption) (context.Context, error) {
	m.mu.RLock()
	if state := m.mu.state; state != stateInitialized {
		m.mu.RUnlock()
		return ctx, stateError(ctx, state)
	}
	applicationID := m.mu.applicationID
	m.mu.RUnlock()

	opts := beginOptions{timeoutSeconds: m.defaultTimeout}
	for _, opt := range options {
		opt(&opts)
	}

	ctx = rootctx.Install(ctx)
	if xid := rootctx.XID(ctx); xid != "" && rootctx.CurrentTransaction(ctx) != nil {
		m.logger.Debug("joining existing global transaction", zap.String("xid", xid))
		return ctx, nil
	}

	if err := m.ensureTMRegistered(ctx, applicationID); err != nil {
		return ctx, err
	}

	resp, err := m.tmClient.Begin(ctx, &rpc.GlobalBeginRequest{
		ApplicationID:           applicationID,
		TransactionServiceGroup: m.txServiceGroup,
		TransactionName:         opts.name,
		TimeoutSeconds:          opts.timeoutSeconds,
	})
	if err != nil {
		return ctx, err
	}

	tx := newGlobalTransaction(resp.XID, RoleLauncher)
	rootctx.SetTransaction(ctx, tx)
	rootctx.BindXID(ctx, resp.XID)
	m.logger.Info("global transaction begun",
		zap.String("xid", resp.XID),
		zap.Int32("timeout-seconds", opts.timeoutSeconds))
	return ctx, nil
}

// IsInTransaction reports whether the execution context holds a non-empty
// XID binding. No coordinator round trip.
func (m *ATTransactionManager) IsInTransaction(ctx context.Context) bool {
	return rootctx.XID(ctx) != ""
}

// Commit finishes the global transaction. Requires both the handle from
// Begin and a bound XID; both bindings are cleared unconditionally once the
// coordinator call completed, then any error surfaces.
func (m *ATTransactionManager) Commit(ctx context.Context, reportStatus bool) error {
	tx, xid, err := m.activeTransaction(ctx, "commit")
	if err != nil {
		return err
	}
	defer m.clearBindings(ctx)

	resp, err := m.tmClient.Commit(ctx, &rpc.GlobalCommitRequest{
		XID:                xid,
		ReportBranchStatus: reportStatus,
	})
	if err != nil {
		return err
	}
	tx.setStatus(resp.Status)
	if resp.Status != rpc.GlobalStatusCommitted && resp.Status != rpc.GlobalStatusFinished {
		return smerr.NewCoordinatorRejected(ctx, "commit", xid, resp.Status.String())
	}
	m.logger.Info("global transaction committed", zap.String("xid", xid))
	return nil
}

// Rollback finishes the global transaction by compensation. Same
// preconditions and cleanup as Commit.
func (m *ATTransactionManager) Rollback(ctx context.Context) error {
	tx, xid, err := m.activeTransaction(ctx, "rollback")
	if err != nil {
		return err
	}
	defer m.clearBindings(ctx)

	resp, err := m.tmClient.Rollback(ctx, &rpc.GlobalRollbackRequest{XID: xid})
	if err != nil {
		return err
	}
	tx.setStatus(resp.Status)
	if resp.Status != rpc.GlobalStatusRollbacked && resp.Status != rpc.GlobalStatusTimeoutRollbacked &&
		resp.Status != rpc.GlobalStatusFinished {
		return smerr.NewCoordinatorRejected(ctx, "rollback", xid, resp.Status.String())
	}
	m.logger.Info("global transaction rolled back", zap.String("xid", xid))
	return nil
}

// Close releases manager-held resources. It never touches context bindings,
// those belong to the execution contexts. Safe to call multiple times.
func (m *ATTransactionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.state == stateClosed {
		return nil
	}
	if m.mu.reporter != nil {
		_ = m.mu.reporter.Close()
	}
	m.mu.dataSources = nil
	m.mu.state = stateClosed
	m.logger.Info("transaction manager closed")
	return nil
}

func (m *ATTransactionManager) activeTransaction(ctx context.Context, op string) (*GlobalTransaction, string, error) {
	handle := rootctx.CurrentTransaction(ctx)
	xid, bound := rootctx.XIDBound(ctx)
	if handle == nil || !bound || xid == "" {
		return nil, "", smerr.NewNoActiveGlobalTransaction(ctx, op)
	}
	tx, ok := handle.(*GlobalTransaction)
	if !ok {
		return nil, "", smerr.NewInvalidState(ctx, "foreign transaction handle bound")
	}
	return tx, xid, nil
}

func (m *ATTransactionManager) clearBindings(ctx context.Context) {
	rootctx.ClearTransaction(ctx)
	rootctx.UnbindXID(ctx)
}

func (m *ATTransactionManager) ensureTMRegistered(ctx context.Context, applicationID string) error {
	m.tm.Lock()
	defer m.tm.Unlock()
	if m.tm.registered {
		return nil
	}
	resp, err := m.tmClient.RegisterApplication(ctx, &rpc.RegisterTMRequest{
		ApplicationID:           applicationID,
		TransactionServiceGroup: m.txServiceGroup,
		Version:                 clientVersion,
	})
	if err != nil {
		return err
	}
	if !resp.Identified {
		return smerr.NewRoleRegisterRejected(ctx, "TM", resp.Message)
	}
	m.tm.registered = true
	return nil
}

func stateError(ctx context.Context, state managerState) error {
	if state == stateClosed {
		return smerr.NewManagerClosed(ctx)
	}
	return smerr.NewManagerNotInitialized(ctx)
}

// BeginWithTimeout shorthand for Begin with a timeout, mirroring the
// begin(timeoutSeconds) entry point of the engine's transaction SPI.
func (m *ATTransactionManager) BeginWithTimeout(ctx context.Context, seconds int32) (context.Context, error) {
	return m.Begin(ctx, WithBeginTimeout(seconds))
}
