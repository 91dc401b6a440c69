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

package logutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, LogConfig{Level: "debug"}.getLevel().Level())
	assert.Equal(t, zapcore.ErrorLevel, LogConfig{Level: "error"}.getLevel().Level())
	// invalid level falls back to info
	assert.Equal(t, zapcore.InfoLevel, LogConfig{Level: "not-a-level"}.getLevel().Level())
}

func TestAdjust(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "info"})
	assert.Equal(t, logger, Adjust(logger))
	assert.NotNil(t, Adjust(nil))
}

func TestSetupGlobalLogger(t *testing.T) {
	logger := SetupGlobalLogger(LogConfig{Level: "warn", Format: "json"})
	require.NotNil(t, logger)
	assert.Equal(t, logger, GetGlobalLogger())
}

func TestNewLoggerWithFile(t *testing.T) {
	f := t.TempDir() + "/shardmesh.log"
	logger := NewLogger(LogConfig{Level: "info", Filename: f, MaxSize: 1})
	logger.Info("hello")
	require.NoError(t, logger.Sync())
	assert.FileExists(t, f)
}
