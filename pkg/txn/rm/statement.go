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

	"github.com/pierrec/lz4"
)

// compressThreshold application data larger than this is lz4-compressed
// before registration, mirroring the undo-payload compression knob of the
// AT protocol.
const compressThreshold = 512

// isWriteStatement classifies a statement by its leading keyword. Only write
// statements enlist a branch; everything else passes straight through to the
// raw connection.
func isWriteStatement(query string) bool {
	switch leadingKeyword(query) {
	case "insert", "update", "delete", "replace":
		return true
	default:
		return false
	}
}

func leadingKeyword(query string) string {
	query = strings.TrimSpace(query)
	end := len(query)
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' {
			end = i
			break
		}
	}
	return strings.ToLower(query[:end])
}

// lockKeysOf derives the lock-key description sent at branch registration.
// Row-level keys require the row image, which is owned by the resource
// manager collaborator; at registration time the target table is the
// descriptor this layer can produce without parsing values.
func lockKeysOf(query string) []string {
	if table := tableNameOf(query); table != "" {
		return []string{table}
	}
	return nil
}

// tableNameOf extracts the statement's target table. Best effort; a table it
// cannot find yields an empty descriptor, never an error.
func tableNameOf(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return ""
	}
	var idx int
	switch strings.ToLower(fields[0]) {
	case "insert", "replace":
		// INSERT [IGNORE] INTO <table>
		idx = 1
		for idx < len(fields) && !strings.EqualFold(fields[idx], "into") {
			idx++
		}
		idx++
	case "update":
		idx = 1
	case "delete":
		// DELETE FROM <table>
		idx = 1
		for idx < len(fields) && !strings.EqualFold(fields[idx], "from") {
			idx++
		}
		idx++
	default:
		return ""
	}
	if idx >= len(fields) {
		return ""
	}
	table := fields[idx]
	if i := strings.IndexByte(table, '('); i >= 0 {
		table = table[:i]
	}
	return strings.Trim(table, "`\"")
}

// maybeCompressAppData compresses the application data blob when it exceeds
// the threshold. Incompressible data is sent uncompressed.
func maybeCompressAppData(data []byte) ([]byte, bool) {
	if len(data) < compressThreshold {
		return data, false
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, buf, ht[:])
	if err != nil || n == 0 || n >= len(data) {
		return data, false
	}
	return buf[:n], true
}
