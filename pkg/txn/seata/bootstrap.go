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

package seata

import (
	"github.com/shardmesh/shardmesh/pkg/common/smerr"
	"github.com/shardmesh/shardmesh/pkg/config"
	"github.com/shardmesh/shardmesh/pkg/logutil"
	"github.com/shardmesh/shardmesh/pkg/txn/coordinator"
)

// NewFromConfig builds a transaction manager from the [transaction] section,
// backed by an embedded coordinator. Callers that talk to an external
// coordinator construct their role clients themselves and use
// NewATTransactionManager directly.
func NewFromConfig(cfg *config.Config) (*ATTransactionManager, error) {
	if cfg == nil {
		return nil, smerr.NewBadConfigNoCtx("nil config")
	}
	if !cfg.Transaction.Enabled {
		return nil, smerr.NewBadConfigNoCtx("distributed transactions disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logutil.Adjust(nil)
	co := coordinator.NewCoordinator(
		coordinator.WithLogger(logger),
		coordinator.WithXIDAddress(cfg.Transaction.CoordinatorAddress))
	return NewATTransactionManager(co, co,
		WithLogger(logger),
		WithTransactionServiceGroup(cfg.Transaction.TransactionServiceGroup),
		WithDefaultBeginTimeout(cfg.Transaction.DefaultTimeoutSeconds)), nil
}
