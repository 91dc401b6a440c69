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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shardmesh/shardmesh/pkg/txn/rootctx"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

func TestGlobalTransactionHandle(t *testing.T) {
	tx := newGlobalTransaction("127.0.0.1:8091:1", RoleLauncher)
	assert.Equal(t, "127.0.0.1:8091:1", tx.XID())
	assert.Equal(t, RoleLauncher, tx.Role())
	assert.Equal(t, rpc.GlobalStatusBegin, tx.Status())

	tx.setStatus(rpc.GlobalStatusCommitted)
	assert.Equal(t, rpc.GlobalStatusCommitted, tx.Status())

	var _ rootctx.Transaction = tx
}

func TestNewGlobalTransactionIsParticipant(t *testing.T) {
	tx := NewGlobalTransaction("127.0.0.1:8091:9")
	assert.Equal(t, RoleParticipant, tx.Role())
	assert.Equal(t, rpc.GlobalStatusBegin, tx.Status())
}

func TestTransactionTypeString(t *testing.T) {
	assert.Equal(t, "LOCAL", TransactionTypeLocal.String())
	assert.Equal(t, "XA", TransactionTypeXA.String())
	assert.Equal(t, "BASE", TransactionTypeBase.String())
}

func TestTransactionRoleString(t *testing.T) {
	assert.Equal(t, "LAUNCHER", RoleLauncher.String())
	assert.Equal(t, "PARTICIPANT", RoleParticipant.String())
}
