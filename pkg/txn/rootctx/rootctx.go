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

// Package rootctx carries the global-transaction bindings of one execution
// context. The XID binding and the transaction-handle binding are two small
// mutable holders installed into a context.Context; mutability is what lets
// commit and rollback clear the bindings of a context that has already been
// handed out. Contexts never share holders, so concurrent execution contexts
// cannot observe each other's global transaction.
package rootctx

import (
	"context"
	"sync"
)

type contextKey int

const (
	xidHolderKey contextKey = iota
	txHolderKey
)

// Transaction is the view rootctx has of a global transaction handle. The
// concrete handle type lives with the transaction manager.
type Transaction interface {
	// XID returns the coordinator-assigned global transaction id.
	XID() string
}

type xidHolder struct {
	sync.Mutex
	bound bool
	xid   string
}

type txHolder struct {
	sync.Mutex
	tx Transaction
}

// Install returns a context carrying fresh empty holders. Installing on a
// context that already has holders returns it unchanged.
func Install(ctx context.Context) context.Context {
	if _, ok := ctx.Value(xidHolderKey).(*xidHolder); ok {
		return ctx
	}
	ctx = context.WithValue(ctx, xidHolderKey, &xidHolder{})
	return context.WithValue(ctx, txHolderKey, &txHolder{})
}

// Installed reports whether ctx carries holders.
func Installed(ctx context.Context) bool {
	_, ok := ctx.Value(xidHolderKey).(*xidHolder)
	return ok
}

// BindXID binds the XID to the context's holder. Returns false when no
// holder is installed.
func BindXID(ctx context.Context, xid string) bool {
	h, ok := ctx.Value(xidHolderKey).(*xidHolder)
	if !ok {
		return false
	}
	h.Lock()
	defer h.Unlock()
	h.bound = true
	h.xid = xid
	return true
}

// XID returns the bound XID, or empty when unbound or no holder installed.
func XID(ctx context.Context) string {
	xid, _ := XIDBound(ctx)
	return xid
}

// XIDBound returns the bound value and whether a binding exists. A binding
// to the empty string is distinct from no binding.
func XIDBound(ctx context.Context) (string, bool) {
	h, ok := ctx.Value(xidHolderKey).(*xidHolder)
	if !ok {
		return "", false
	}
	h.Lock()
	defer h.Unlock()
	return h.xid, h.bound
}

// UnbindXID removes the XID binding. No-op without a holder.
func UnbindXID(ctx context.Context) {
	h, ok := ctx.Value(xidHolderKey).(*xidHolder)
	if !ok {
		return
	}
	h.Lock()
	defer h.Unlock()
	h.bound = false
	h.xid = ""
}

// SetTransaction stores the active handle for this execution context.
// Returns false when no holder is installed.
func SetTransaction(ctx context.Context, tx Transaction) bool {
	h, ok := ctx.Value(txHolderKey).(*txHolder)
	if !ok {
		return false
	}
	h.Lock()
	defer h.Unlock()
	h.tx = tx
	return true
}

// CurrentTransaction returns the stored handle or nil.
func CurrentTransaction(ctx context.Context) Transaction {
	h, ok := ctx.Value(txHolderKey).(*txHolder)
	if !ok {
		return nil
	}
	h.Lock()
	defer h.Unlock()
	return h.tx
}

// ClearTransaction removes the stored handle. No-op without a holder.
func ClearTransaction(ctx context.Context) {
	h, ok := ctx.Value(txHolderKey).(*txHolder)
	if !ok {
		return
	}
	h.Lock()
	defer h.Unlock()
	h.tx = nil
}
