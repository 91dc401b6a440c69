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
	"strings"
	"testing"

	"github.com/pierrec/lz4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWriteStatement(t *testing.T) {
	writes := []string{
		"INSERT INTO t_order (user_id) VALUES (1)",
		"insert into t_order values (1)",
		"  UPDATE t_order SET status = 'done'",
		"DELETE FROM t_order WHERE order_id = 1",
		"REPLACE INTO t_order VALUES (1)",
		"update\nt_order set status = 'done'",
	}
	for _, q := range writes {
		assert.True(t, isWriteStatement(q), q)
	}

	reads := []string{
		"SELECT * FROM t_order",
		"SET autocommit = 1",
		"SHOW TABLES",
		"BEGIN",
		"COMMIT",
		"",
		"(SELECT 1)",
	}
	for _, q := range reads {
		assert.False(t, isWriteStatement(q), q)
	}
}

func TestTableNameOf(t *testing.T) {
	cases := map[string]string{
		"INSERT INTO t_order (user_id) VALUES (1)":    "t_order",
		"INSERT IGNORE INTO t_order VALUES (1)":       "t_order",
		"INSERT INTO `t_order`(user_id) VALUES (1)":   "t_order",
		"UPDATE t_order SET status = 'done'":          "t_order",
		"DELETE FROM t_order_item WHERE order_id = 7": "t_order_item",
		"REPLACE INTO t_order VALUES (1)":             "t_order",
		"SELECT * FROM t_order":                       "",
		"DELETE":                                      "",
		"INSERT":                                      "",
	}
	for query, want := range cases {
		assert.Equal(t, want, tableNameOf(query), query)
	}
}

func TestLockKeysOf(t *testing.T) {
	assert.Equal(t, []string{"t_order"}, lockKeysOf("UPDATE t_order SET status = 1"))
	assert.Nil(t, lockKeysOf("SELECT 1"))
}

func TestMaybeCompressAppDataSmallPayload(t *testing.T) {
	data := []byte("INSERT INTO t_order VALUES (1)")
	out, compressed := maybeCompressAppData(data)
	assert.False(t, compressed)
	assert.Equal(t, data, out)
}

func TestMaybeCompressAppDataLargePayload(t *testing.T) {
	data := []byte(strings.Repeat("INSERT INTO t_order (user_id, status) VALUES (?, ?);", 40))
	out, compressed := maybeCompressAppData(data)
	require.True(t, compressed)
	require.Less(t, len(out), len(data))

	restored := make([]byte, len(data))
	n, err := lz4.UncompressBlock(out, restored)
	require.NoError(t, err)
	assert.Equal(t, data, restored[:n])
}

func TestMaybeCompressAppDataIncompressible(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i*131 + i/7)
	}
	out, compressed := maybeCompressAppData(data)
	if !compressed {
		assert.Equal(t, data, out)
	}
}
