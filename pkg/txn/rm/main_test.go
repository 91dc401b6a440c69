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
	"os"
	"testing"

	"github.com/panjf2000/ants/v2"
)

func TestMain(m *testing.M) {
	// Nothing in this package uses the ants default pool, but its package
	// init spawns a purge goroutine that is still frameless when leaktest
	// takes its baseline snapshot and would be flagged as leaked. Release
	// the default pool so the goroutine exits before any test runs.
	ants.Release()
	os.Exit(m.Run())
}
