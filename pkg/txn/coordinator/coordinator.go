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

// Package coordinator provides an in-process transaction coordinator that
// implements both role-client interfaces directly, without any wire
// transport. It backs the test suites of the transaction packages and can be
// embedded for single-process deployments. The production coordinator is an
// external service and is not part of this repository.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/yireyun/go-queue"
	"go.uber.org/zap"

	"github.com/shardmesh/shardmesh/pkg/common/smerr"
	"github.com/shardmesh/shardmesh/pkg/logutil"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

const (
	defaultXIDAddress      = "127.0.0.1:8091"
	defaultJournalCapacity = 1024
	lockTableDegree        = 8
)

// Option options for create Coordinator
type Option func(*Coordinator)

// WithLogger setup zap logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithXIDAddress set the address prefix of generated XIDs.
func WithXIDAddress(address string) Option {
	return func(c *Coordinator) {
		c.address = address
	}
}

// WithJournalCapacity set the capacity of the received-request journal.
func WithJournalCapacity(capacity uint32) Option {
	return func(c *Coordinator) {
		c.journal = queue.NewQueue(capacity)
	}
}

var (
	_ rpc.TMClient = (*Coordinator)(nil)
	_ rpc.RMClient = (*Coordinator)(nil)
)

// Coordinator in-process transaction coordinator. It keeps global and branch
// sessions in memory, row locks in a btree keyed by resource and lock key,
// and journals every received request in arrival order so tests can assert
// the exact protocol conversation.
type Coordinator struct {
	logger  *zap.Logger
	address string
	journal *queue.EsQueue

	// now is a hook for tests to control timeout expiry.
	now func() time.Time

	mu struct {
		sync.Mutex
		closed   bool
		sequence uint64
		globals  map[string]*globalSession
		locks    *btree.BTree
	}
}

type globalSession struct {
	xid       string
	status    rpc.GlobalStatus
	timeout   time.Duration
	createdAt time.Time
	branches  []*branchSession
}

type branchSession struct {
	branchID   int64
	resourceID string
	status     rpc.BranchStatus
	lockKeys   []string
}

type lockItem struct {
	key string // <resource-id>^<lock-key>
	xid string
}

func (l lockItem) Less(than btree.Item) bool {
	return l.key < than.(lockItem).key
}

func lockKeyOf(resourceID, lockKey string) string {
	return resourceID + "^" + lockKey
}

// NewCoordinator create an in-process coordinator.
func NewCoordinator(options ...Option) *Coordinator {
	c := &Coordinator{now: time.Now}
	for _, opt := range options {
		opt(c)
	}
	c.adjust()
	return c
}

func (c *Coordinator) adjust() {
	c.logger = logutil.Adjust(c.logger).Named("coordinator")
	if c.address == "" {
		c.address = defaultXIDAddress
	}
	if c.journal == nil {
		c.journal = queue.NewQueue(defaultJournalCapacity)
	}
	c.mu.globals = make(map[string]*globalSession)
	c.mu.locks = btree.New(lockTableDegree)
}

func (c *Coordinator) record(req any) {
	if ok, _ := c.journal.Put(req); !ok {
		c.logger.Warn("request journal full, dropping entry")
	}
}

// Requests drains and returns the journal of received requests in arrival
// order.
func (c *Coordinator) Requests() []any {
	var requests []any
	for {
		v, ok, _ := c.journal.Get()
		if !ok {
			return requests
		}
		requests = append(requests, v)
	}
}

// ActiveCount returns the number of global transactions still in BEGIN state.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, g := range c.mu.globals {
		if g.status == rpc.GlobalStatusBegin {
			n++
		}
	}
	return n
}

// GlobalStatusOf reports the status of one global transaction.
func (c *Coordinator) GlobalStatusOf(xid string) (rpc.GlobalStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.mu.globals[xid]
	if !ok {
		return rpc.GlobalStatusUnknown, false
	}
	return g.status, true
}

func (c *Coordinator) RegisterApplication(ctx context.Context, req *rpc.RegisterTMRequest) (*rpc.RegisterTMResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("tm role registered",
		zap.String("application", req.ApplicationID),
		zap.String("group", req.TransactionServiceGroup))
	return &rpc.RegisterTMResponse{Identified: true}, nil
}

func (c *Coordinator) RegisterResource(ctx context.Context, req *rpc.RegisterRMRequest) (*rpc.RegisterRMResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("rm role registered",
		zap.String("application", req.ApplicationID),
		zap.Strings("resources", req.ResourceIDs))
	return &rpc.RegisterRMResponse{Identified: true}, nil
}

func (c *Coordinator) Begin(ctx context.Context, req *rpc.GlobalBeginRequest) (*rpc.GlobalBeginResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.sequence++
	g := &globalSession{
		xid:       fmt.Sprintf("%s:%d", c.address, c.mu.sequence),
		status:    rpc.GlobalStatusBegin,
		timeout:   time.Duration(req.TimeoutSeconds) * time.Second,
		createdAt: c.now(),
	}
	c.mu.globals[g.xid] = g
	c.logger.Info("global transaction begun",
		zap.String("xid", g.xid),
		zap.Int32("timeout-seconds", req.TimeoutSeconds))
	return &rpc.GlobalBeginResponse{XID: g.xid}, nil
}

func (c *Coordinator) Commit(ctx context.Context, req *rpc.GlobalCommitRequest) (*rpc.GlobalCommitResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.mu.globals[req.XID]
	if !ok {
		return nil, smerr.NewGlobalTransactionNotFound(ctx, req.XID)
	}
	if c.expiredLocked(g) {
		return &rpc.GlobalCommitResponse{
			Status:  rpc.GlobalStatusTimeoutRollbacked,
			Message: "timeout, rolled back by coordinator",
		}, nil
	}
	if g.status.Terminal() {
		return &rpc.GlobalCommitResponse{Status: g.status, Message: "already finished"}, nil
	}

	for _, b := range g.branches {
		if req.ReportBranchStatus {
			c.logger.Info("branch status at commit",
				zap.String("xid", g.xid),
				zap.Int64("branch-id", b.branchID),
				zap.String("status", b.status.String()))
		}
		b.status = rpc.BranchStatusPhaseTwoCommitted
	}
	g.status = rpc.GlobalStatusCommitted
	c.releaseLocksLocked(g)
	c.logger.Info("global transaction committed", zap.String("xid", g.xid))
	return &rpc.GlobalCommitResponse{Status: rpc.GlobalStatusCommitted}, nil
}

func (c *Coordinator) Rollback(ctx context.Context, req *rpc.GlobalRollbackRequest) (*rpc.GlobalRollbackResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.mu.globals[req.XID]
	if !ok {
		return nil, smerr.NewGlobalTransactionNotFound(ctx, req.XID)
	}
	if g.status.Terminal() {
		return &rpc.GlobalRollbackResponse{Status: g.status, Message: "already finished"}, nil
	}

	for _, b := range g.branches {
		b.status = rpc.BranchStatusPhaseTwoRollbacked
	}
	g.status = rpc.GlobalStatusRollbacked
	c.releaseLocksLocked(g)
	c.logger.Info("global transaction rolled back", zap.String("xid", g.xid))
	return &rpc.GlobalRollbackResponse{Status: rpc.GlobalStatusRollbacked}, nil
}

func (c *Coordinator) BranchRegister(ctx context.Context, req *rpc.BranchRegisterRequest) (*rpc.BranchRegisterResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.mu.globals[req.XID]
	if !ok {
		return nil, smerr.NewGlobalTransactionNotFound(ctx, req.XID)
	}
	if g.status != rpc.GlobalStatusBegin || c.expiredLocked(g) {
		return nil, smerr.NewGlobalTransactionFinished(ctx, req.XID)
	}

	// All-or-nothing lock acquisition. A key held by another global
	// transaction rejects the whole registration.
	for _, key := range req.LockKeys {
		item := lockItem{key: lockKeyOf(req.ResourceID, key)}
		if held := c.mu.locks.Get(item); held != nil {
			if held.(lockItem).xid != req.XID {
				return nil, smerr.NewBranchLockConflict(ctx, req.ResourceID, key)
			}
		}
	}
	for _, key := range req.LockKeys {
		c.mu.locks.ReplaceOrInsert(lockItem{key: lockKeyOf(req.ResourceID, key), xid: req.XID})
	}

	c.mu.sequence++
	b := &branchSession{
		branchID:   int64(c.mu.sequence),
		resourceID: req.ResourceID,
		status:     rpc.BranchStatusRegistered,
		lockKeys:   req.LockKeys,
	}
	g.branches = append(g.branches, b)
	c.logger.Info("branch registered",
		zap.String("xid", g.xid),
		zap.Int64("branch-id", b.branchID),
		zap.String("resource", b.resourceID))
	return &rpc.BranchRegisterResponse{BranchID: b.branchID}, nil
}

func (c *Coordinator) BranchReport(ctx context.Context, req *rpc.BranchReportRequest) (*rpc.BranchReportResponse, error) {
	c.record(req)
	if err := c.checkOpen(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.mu.globals[req.XID]
	if !ok {
		return nil, smerr.NewGlobalTransactionNotFound(ctx, req.XID)
	}
	for _, b := range g.branches {
		if b.branchID == req.BranchID {
			b.status = req.Status
			return &rpc.BranchReportResponse{}, nil
		}
	}
	return nil, smerr.NewInvalidInput(ctx, "branch %d not found in %s", req.BranchID, req.XID)
}

// Close marks the coordinator closed. Safe to call multiple times.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.closed = true
	return nil
}

func (c *Coordinator) checkOpen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return smerr.NewRPC(ctx, fmt.Errorf("coordinator %s closed", c.address))
	}
	return nil
}

func (c *Coordinator) expiredLocked(g *globalSession) bool {
	if g.timeout <= 0 || g.status != rpc.GlobalStatusBegin {
		return false
	}
	if c.now().Sub(g.createdAt) < g.timeout {
		return false
	}
	for _, b := range g.branches {
		b.status = rpc.BranchStatusPhaseTwoRollbacked
	}
	g.status = rpc.GlobalStatusTimeoutRollbacked
	c.releaseLocksLocked(g)
	c.logger.Warn("global transaction timed out, rolled back", zap.String("xid", g.xid))
	return true
}

func (c *Coordinator) releaseLocksLocked(g *globalSession) {
	for _, b := range g.branches {
		for _, key := range b.lockKeys {
			item := lockItem{key: lockKeyOf(b.resourceID, key)}
			if held := c.mu.locks.Get(item); held != nil && held.(lockItem).xid == g.xid {
				c.mu.locks.Delete(item)
			}
		}
	}
}
