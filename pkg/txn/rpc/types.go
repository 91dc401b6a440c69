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

package rpc

import (
	"context"
	"fmt"
)

// GlobalStatus status of one global transaction, as reported by the
// coordinator. The coordinator's answer is authoritative; this layer never
// second-guesses a terminal status.
type GlobalStatus int32

const (
	GlobalStatusUnknown GlobalStatus = iota
	GlobalStatusBegin
	GlobalStatusCommitting
	GlobalStatusCommitted
	GlobalStatusRollbacking
	GlobalStatusRollbacked
	GlobalStatusTimeoutRollbacked
	GlobalStatusFinished
)

var globalStatusNames = map[GlobalStatus]string{
	GlobalStatusUnknown:           "UNKNOWN",
	GlobalStatusBegin:             "BEGIN",
	GlobalStatusCommitting:        "COMMITTING",
	GlobalStatusCommitted:         "COMMITTED",
	GlobalStatusRollbacking:       "ROLLBACKING",
	GlobalStatusRollbacked:        "ROLLBACKED",
	GlobalStatusTimeoutRollbacked: "TIMEOUT_ROLLBACKED",
	GlobalStatusFinished:          "FINISHED",
}

func (s GlobalStatus) String() string {
	if n, ok := globalStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("%d", int32(s))
}

// Terminal returns true once the coordinator can no longer change the
// outcome of the global transaction.
func (s GlobalStatus) Terminal() bool {
	switch s {
	case GlobalStatusCommitted, GlobalStatusRollbacked,
		GlobalStatusTimeoutRollbacked, GlobalStatusFinished:
		return true
	default:
		return false
	}
}

// BranchStatus status of one branch transaction.
type BranchStatus int32

const (
	BranchStatusUnknown BranchStatus = iota
	BranchStatusRegistered
	BranchStatusPhaseOneDone
	BranchStatusPhaseOneFailed
	BranchStatusPhaseTwoCommitted
	BranchStatusPhaseTwoRollbacked
)

var branchStatusNames = map[BranchStatus]string{
	BranchStatusUnknown:            "UNKNOWN",
	BranchStatusRegistered:         "REGISTERED",
	BranchStatusPhaseOneDone:       "PHASE_ONE_DONE",
	BranchStatusPhaseOneFailed:     "PHASE_ONE_FAILED",
	BranchStatusPhaseTwoCommitted:  "PHASE_TWO_COMMITTED",
	BranchStatusPhaseTwoRollbacked: "PHASE_TWO_ROLLBACKED",
}

func (s BranchStatus) String() string {
	if n, ok := branchStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("%d", int32(s))
}

// BranchType protocol used by a branch. Only the automatic compensation
// branch type is produced by this layer.
type BranchType int32

const (
	BranchTypeAT BranchType = iota
	BranchTypeTCC
)

func (t BranchType) String() string {
	if t == BranchTypeTCC {
		return "TCC"
	}
	return "AT"
}

// RegisterTMRequest registers the process as a transaction-manager role.
type RegisterTMRequest struct {
	ApplicationID           string
	TransactionServiceGroup string
	Version                 string
}

type RegisterTMResponse struct {
	Identified bool
	Message    string
}

// RegisterRMRequest registers the process as a resource-manager role,
// advertising the resources it manages.
type RegisterRMRequest struct {
	ApplicationID           string
	TransactionServiceGroup string
	ResourceIDs             []string
}

type RegisterRMResponse struct {
	Identified bool
	Message    string
}

// GlobalBeginRequest opens a new global transaction. TimeoutSeconds > 0 asks
// the coordinator to unilaterally roll the transaction back once the window
// expires.
type GlobalBeginRequest struct {
	ApplicationID           string
	TransactionServiceGroup string
	TransactionName         string
	TimeoutSeconds          int32
}

type GlobalBeginResponse struct {
	XID string
}

type GlobalCommitRequest struct {
	XID string
	// ReportBranchStatus asks the coordinator to include branch-level
	// status in its diagnostics. It never alters the commit decision.
	ReportBranchStatus bool
}

type GlobalCommitResponse struct {
	Status  GlobalStatus
	Message string
}

type GlobalRollbackRequest struct {
	XID string
}

type GlobalRollbackResponse struct {
	Status  GlobalStatus
	Message string
}

// BranchRegisterRequest enlists one resource into a global transaction. The
// lock keys describe the rows the branch intends to mutate; application data
// is an opaque blob owned by the resource manager, optionally compressed.
type BranchRegisterRequest struct {
	XID               string
	ResourceID        string
	BranchType        BranchType
	LockKeys          []string
	ApplicationData   []byte
	AppDataCompressed bool
}

type BranchRegisterResponse struct {
	BranchID int64
}

type BranchReportRequest struct {
	XID        string
	BranchID   int64
	ResourceID string
	Status     BranchStatus
}

type BranchReportResponse struct {
}

// TMClient is the transaction-manager role client. Implementations own the
// wire transport to the coordinator; every method is a synchronous round
// trip and blocks on network I/O.
type TMClient interface {
	// RegisterApplication registers the TM role, at most once per process
	// from this layer's perspective. Idempotent on the coordinator side.
	RegisterApplication(ctx context.Context, req *RegisterTMRequest) (*RegisterTMResponse, error)
	// Begin opens a global transaction and returns its coordinator-assigned XID.
	Begin(ctx context.Context, req *GlobalBeginRequest) (*GlobalBeginResponse, error)
	// Commit asks the coordinator to commit the global transaction.
	Commit(ctx context.Context, req *GlobalCommitRequest) (*GlobalCommitResponse, error)
	// Rollback asks the coordinator to roll back the global transaction.
	Rollback(ctx context.Context, req *GlobalRollbackRequest) (*GlobalRollbackResponse, error)
	Close() error
}

// RMClient is the resource-manager role client.
type RMClient interface {
	// RegisterResource advertises managed resources, at most once per process
	// from this layer's perspective.
	RegisterResource(ctx context.Context, req *RegisterRMRequest) (*RegisterRMResponse, error)
	// BranchRegister enlists a branch under a bound XID. A conflict or
	// coordinator failure fails the triggering statement; no retry here.
	BranchRegister(ctx context.Context, req *BranchRegisterRequest) (*BranchRegisterResponse, error)
	// BranchReport reports phase-one branch status, diagnostics only.
	BranchReport(ctx context.Context, req *BranchReportRequest) (*BranchReportResponse, error)
	Close() error
}
