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
	"sync"

	"github.com/shardmesh/shardmesh/pkg/txn/rootctx"
	"github.com/shardmesh/shardmesh/pkg/txn/rpc"
)

// TransactionType the protocol a transaction manager operates in.
type TransactionType int32

const (
	TransactionTypeLocal TransactionType = iota
	TransactionTypeXA
	TransactionTypeBase
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeXA:
		return "XA"
	case TransactionTypeBase:
		return "BASE"
	default:
		return "LOCAL"
	}
}

// TransactionRole how this execution context relates to the global
// transaction: the launcher begun it, a participant joined an existing one.
type TransactionRole int32

const (
	RoleLauncher TransactionRole = iota
	RoleParticipant
)

func (r TransactionRole) String() string {
	if r == RoleParticipant {
		return "PARTICIPANT"
	}
	return "LAUNCHER"
}

var _ rootctx.Transaction = (*GlobalTransaction)(nil)

// GlobalTransaction the handle obtained from the coordinator when a global
// transaction is created or joined. It authorizes commit/rollback for its
// execution context and is destroyed when either completes.
type GlobalTransaction struct {
	xid  string
	role TransactionRole

	mu struct {
		sync.Mutex
		status rpc.GlobalStatus
	}
}

func newGlobalTransaction(xid string, role TransactionRole) *GlobalTransaction {
	tx := &GlobalTransaction{xid: xid, role: role}
	tx.mu.status = rpc.GlobalStatusBegin
	return tx
}

// NewGlobalTransaction rebuilds a handle for a resumed execution context,
// e.g. when the XID was propagated from another process.
func NewGlobalTransaction(xid string) *GlobalTransaction {
	return newGlobalTransaction(xid, RoleParticipant)
}

// XID the coordinator-assigned global transaction id.
func (tx *GlobalTransaction) XID() string {
	return tx.xid
}

// Role this context's role in the global transaction.
func (tx *GlobalTransaction) Role() TransactionRole {
	return tx.role
}

// Status the last status observed from the coordinator.
func (tx *GlobalTransaction) Status() rpc.GlobalStatus {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.mu.status
}

func (tx *GlobalTransaction) setStatus(status rpc.GlobalStatus) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.mu.status = status
}
