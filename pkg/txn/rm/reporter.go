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
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/shardmesh/shardmesh/pkg/logutil"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

const (
	defaultReporterWorkers = 4
	defaultReportTimeout   = time.Second * 10
)

// ReporterOption options for create BranchReporter
type ReporterOption func(*BranchReporter)

// WithReporterLogger setup zap logger
func WithReporterLogger(logger *zap.Logger) ReporterOption {
	return func(r *BranchReporter) {
		r.logger = logger
	}
}

// WithReporterWorkers set the goroutine pool size.
func WithReporterWorkers(workers int) ReporterOption {
	return func(r *BranchReporter) {
		r.workers = workers
	}
}

// WithReportTimeout set the per-report rpc timeout.
func WithReportTimeout(timeout time.Duration) ReporterOption {
	return func(r *BranchReporter) {
		r.timeout = timeout
	}
}

// BranchReporter delivers phase-one branch status reports off the statement
// execution path. Reports are diagnostics for the coordinator; a failed
// report is logged and dropped, it never fails the statement.
type BranchReporter struct {
	logger  *zap.Logger
	client  rpc.RMClient
	pool    *ants.Pool
	workers int
	timeout time.Duration
}

// NewBranchReporter create a branch reporter backed by a bounded goroutine
// pool.
func NewBranchReporter(client rpc.RMClient, options ...ReporterOption) (*BranchReporter, error) {
	r := &BranchReporter{client: client}
	for _, opt := range options {
		opt(r)
	}
	r.adjust()

	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

func (r *BranchReporter) adjust() {
	r.logger = logutil.Adjust(r.logger).Named("branch-reporter")
	if r.workers <= 0 {
		r.workers = defaultReporterWorkers
	}
	if r.timeout <= 0 {
		r.timeout = defaultReportTimeout
	}
}

// Report submits one branch status report. Falls back to a synchronous send
// when the pool rejects the task (e.g. during shutdown).
func (r *BranchReporter) Report(req *rpc.BranchReportRequest) {
	if err := r.pool.Submit(func() { r.send(req) }); err != nil {
		r.send(req)
	}
}

func (r *BranchReporter) send(req *rpc.BranchReportRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.client.BranchReport(ctx, req); err != nil {
		r.logger.Error("branch report failed",
			zap.String("xid", req.XID),
			zap.Int64("branch-id", req.BranchID),
			zap.String("status", req.Status.String()),
			zap.Error(err))
	}
}

// Close releases the goroutine pool. In-flight reports are completed.
func (r *BranchReporter) Close() error {
	r.pool.Release()
	return nil
}
