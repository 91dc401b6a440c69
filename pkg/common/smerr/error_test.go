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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewDataSourceNotFound(context.Background(), "sharding_db.ds_0")
	assert.Equal(t, ErrDataSourceNotFound, err.ErrorCode())
	assert.Equal(t, "datasource sharding_db.ds_0 not found", err.Error())
}

func TestNewErrorWithUnknownCodeWillPanic(t *testing.T) {
	defer func() {
		if err := recover(); err != nil {
			return
		}
		assert.Fail(t, "must panic")
	}()
	newError(context.Background(), ErrEnd)
}

func TestIsSmErrCode(t *testing.T) {
	assert.True(t, IsSmErrCode(nil, Ok))
	assert.False(t, IsSmErrCode(nil, ErrInternal))
	assert.False(t, IsSmErrCode(errors.New("other"), ErrInternal))

	err := NewNoActiveGlobalTransactionNoCtx("commit")
	assert.True(t, IsSmErrCode(err, ErrNoActiveGlobalTransaction))
	assert.False(t, IsSmErrCode(err, ErrBranchLockConflict))
}

func TestNoArgsMessage(t *testing.T) {
	err := NewManagerClosed(context.Background())
	require.Equal(t, "transaction manager closed", err.Error())
}

func TestFormattedMessages(t *testing.T) {
	cases := []struct {
		err      *Error
		expected string
	}{
		{NewBranchLockConflictNoCtx("jdbc:mysql://db", "t_order:1"), "branch register lock conflict on resource jdbc:mysql://db, key t_order:1"},
		{NewCoordinatorRejected(context.Background(), "commit", "xid-1", "timeout rollbacked"), "coordinator rejected commit request for xid-1: timeout rollbacked"},
		{NewNoActiveGlobalTransactionNoCtx("rollback"), "no active global transaction, rollback called without begin"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, c.err.Error())
	}
}
