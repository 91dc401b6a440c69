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

package smerr

import (
	"context"
	"fmt"
)

const (
	// 0 - 99 is OK. Special handled using a static instance, no alloc.
	Ok uint16 = 0

	// Group 1: internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state
	ErrInvalidState          uint16 = 20400
	ErrDataSourceNotFound    uint16 = 20401
	ErrManagerNotInitialized uint16 = 20402
	ErrManagerClosed         uint16 = 20403

	// Group 5: rpc errors
	ErrRPC                  uint16 = 20500
	ErrCoordinatorRejected  uint16 = 20501
	ErrRoleRegisterRejected uint16 = 20502

	// Group 6: txn errors
	ErrNoActiveGlobalTransaction uint16 = 20600
	ErrGlobalTransactionNotFound uint16 = 20601
	ErrGlobalTransactionFinished uint16 = 20602
	ErrBranchLockConflict        uint16 = 20603
	ErrBranchRegisterFailed      uint16 = 20604

	// ErrEnd, max value of shardmesh error code
	ErrEnd uint16 = 65535
)

var errorMsgRefer = map[uint16]string{
	ErrInternal:                  "internal error: %s",
	ErrNYI:                       "%s is not yet implemented",
	ErrBadConfig:                 "invalid configuration: %s",
	ErrInvalidInput:              "invalid input: %s",
	ErrInvalidState:              "invalid state %s",
	ErrDataSourceNotFound:        "datasource %s not found",
	ErrManagerNotInitialized:     "transaction manager not initialized",
	ErrManagerClosed:             "transaction manager closed",
	ErrRPC:                       "rpc error: %s",
	ErrCoordinatorRejected:       "coordinator rejected %s request for %s: %s",
	ErrRoleRegisterRejected:      "coordinator rejected %s role registration: %s",
	ErrNoActiveGlobalTransaction: "no active global transaction, %s called without begin",
	ErrGlobalTransactionNotFound: "global transaction %s not found",
	ErrGlobalTransactionFinished: "global transaction %s already finished",
	ErrBranchLockConflict:        "branch register lock conflict on resource %s, key %s",
	ErrBranchRegisterFailed:      "branch register failed on resource %s: %s",
}

// Error is the descriptor of a shardmesh error. All errors returned across
// package boundaries are of this type so that callers can dispatch on the
// error code instead of matching message strings.
type Error struct {
	code    uint16
	message string
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	format, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Sprintf("not exist shardmesh error code: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: format}
	}
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

// IsSmErrCode returns true if err is a shardmesh error with the given code.
func IsSmErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	me, ok := e.(*Error)
	if !ok {
		return false
	}
	return me.code == rc
}

func NewInternal(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInternal, fmt.Sprintf(msg, args...))
}

func NewInternalNoCtx(msg string, args ...any) *Error {
	return NewInternal(context.Background(), msg, args...)
}

func NewNYI(ctx context.Context, what string) *Error {
	return newError(ctx, ErrNYI, what)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	return NewBadConfig(context.Background(), msg, args...)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewDataSourceNotFound(ctx context.Context, name string) *Error {
	return newError(ctx, ErrDataSourceNotFound, name)
}

func NewDataSourceNotFoundNoCtx(name string) *Error {
	return NewDataSourceNotFound(context.Background(), name)
}

func NewManagerNotInitialized(ctx context.Context) *Error {
	return newError(ctx, ErrManagerNotInitialized)
}

func NewManagerClosed(ctx context.Context) *Error {
	return newError(ctx, ErrManagerClosed)
}

func NewRPC(ctx context.Context, cause error) *Error {
	return newError(ctx, ErrRPC, cause.Error())
}

func NewRPCNoCtx(cause error) *Error {
	return NewRPC(context.Background(), cause)
}

func NewCoordinatorRejected(ctx context.Context, op string, xid string, reason string) *Error {
	return newError(ctx, ErrCoordinatorRejected, op, xid, reason)
}

func NewRoleRegisterRejected(ctx context.Context, role string, reason string) *Error {
	return newError(ctx, ErrRoleRegisterRejected, role, reason)
}

func NewNoActiveGlobalTransaction(ctx context.Context, op string) *Error {
	return newError(ctx, ErrNoActiveGlobalTransaction, op)
}

func NewNoActiveGlobalTransactionNoCtx(op string) *Error {
	return NewNoActiveGlobalTransaction(context.Background(), op)
}

func NewGlobalTransactionNotFound(ctx context.Context, xid string) *Error {
	return newError(ctx, ErrGlobalTransactionNotFound, xid)
}

func NewGlobalTransactionNotFoundNoCtx(xid string) *Error {
	return NewGlobalTransactionNotFound(context.Background(), xid)
}

func NewGlobalTransactionFinished(ctx context.Context, xid string) *Error {
	return newError(ctx, ErrGlobalTransactionFinished, xid)
}

func NewBranchLockConflict(ctx context.Context, resourceID string, lockKey string) *Error {
	return newError(ctx, ErrBranchLockConflict, resourceID, lockKey)
}

func NewBranchLockConflictNoCtx(resourceID string, lockKey string) *Error {
	return NewBranchLockConflict(context.Background(), resourceID, lockKey)
}

func NewBranchRegisterFailed(ctx context.Context, resourceID string, reason string) *Error {
	return newError(ctx, ErrBranchRegisterFailed, resourceID, reason)
}
