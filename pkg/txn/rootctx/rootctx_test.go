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

package rootctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTransaction struct {
	xid string
}

func (t *testTransaction) XID() string {
	return t.xid
}

func TestBindWithoutInstall(t *testing.T) {
	ctx := context.Background()
	assert.False(t, BindXID(ctx, "xid-1"))
	assert.False(t, SetTransaction(ctx, &testTransaction{xid: "xid-1"}))
	assert.Equal(t, "", XID(ctx))
	assert.Nil(t, CurrentTransaction(ctx))
	assert.False(t, Installed(ctx))
	// no-ops, must not panic
	UnbindXID(ctx)
	ClearTransaction(ctx)
}

func TestInstallIsIdempotent(t *testing.T) {
	ctx := Install(context.Background())
	assert.True(t, Installed(ctx))
	require.True(t, BindXID(ctx, "xid-1"))

	ctx2 := Install(ctx)
	assert.Equal(t, "xid-1", XID(ctx2))
}

func TestBindAndUnbindXID(t *testing.T) {
	ctx := Install(context.Background())

	_, bound := XIDBound(ctx)
	assert.False(t, bound)

	require.True(t, BindXID(ctx, "xid-1"))
	xid, bound := XIDBound(ctx)
	assert.True(t, bound)
	assert.Equal(t, "xid-1", xid)

	UnbindXID(ctx)
	_, bound = XIDBound(ctx)
	assert.False(t, bound)
}

func TestEmptyXIDBindingIsDistinctFromAbsent(t *testing.T) {
	ctx := Install(context.Background())
	require.True(t, BindXID(ctx, ""))
	xid, bound := XIDBound(ctx)
	assert.True(t, bound)
	assert.Equal(t, "", xid)
}

func TestTransactionHolder(t *testing.T) {
	ctx := Install(context.Background())
	assert.Nil(t, CurrentTransaction(ctx))

	tx := &testTransaction{xid: "xid-1"}
	require.True(t, SetTransaction(ctx, tx))
	assert.Equal(t, tx, CurrentTransaction(ctx))

	ClearTransaction(ctx)
	assert.Nil(t, CurrentTransaction(ctx))
}

func TestHandleAndXIDCanDiverge(t *testing.T) {
	ctx := Install(context.Background())
	require.True(t, SetTransaction(ctx, &testTransaction{xid: "xid-1"}))
	// handle present, xid not yet propagated
	assert.NotNil(t, CurrentTransaction(ctx))
	_, bound := XIDBound(ctx)
	assert.False(t, bound)
}

func TestNoCrossTalkBetweenContexts(t *testing.T) {
	const contexts = 50
	var wg sync.WaitGroup
	for i := 0; i < contexts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := Install(context.Background())
			xid := "xid-" + string(rune('a'+n%26))
			require.True(t, BindXID(ctx, xid))
			assert.Equal(t, xid, XID(ctx))
			UnbindXID(ctx)
			assert.Equal(t, "", XID(ctx))
		}(i)
	}
	wg.Wait()
}

func TestDerivedContextSharesHolders(t *testing.T) {
	type otherKey struct{}
	ctx := Install(context.Background())
	child := context.WithValue(ctx, otherKey{}, "v")
	require.True(t, BindXID(child, "xid-1"))
	// binding through the child is visible to the parent scope
	assert.Equal(t, "xid-1", XID(ctx))
}
