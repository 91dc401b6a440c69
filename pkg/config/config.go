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

// Package config loads the TOML configuration of the transaction
// integration.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/shardmesh/shardmesh/pkg/common/smerr"
	"github.com/shardmesh/shardmesh/pkg/logutil"
)

// TransactionConfig the [transaction] section.
type TransactionConfig struct {
	// Enabled turns distributed transaction support on. When false the
	// engine keeps using plain local transactions.
	Enabled bool `toml:"enabled"`

	// ApplicationID announced to the coordinator when registering the TM
	// and RM roles. Required when Enabled.
	ApplicationID string `toml:"application-id"`

	// TransactionServiceGroup groups applications on the coordinator side.
	// default: default_tx_group
	TransactionServiceGroup string `toml:"tx-service-group"`

	// DefaultTimeoutSeconds coordinator-side timeout applied when begin is
	// called without one. default: 60
	DefaultTimeoutSeconds int32 `toml:"default-timeout-seconds"`

	// CoordinatorAddress host:port baked into generated XIDs by the
	// embedded coordinator. default: 127.0.0.1:8091
	CoordinatorAddress string `toml:"coordinator-address"`
}

// Config the full configuration file.
type Config struct {
	Transaction TransactionConfig `toml:"transaction"`
	Log         logutil.LogConfig `toml:"log"`
}

// SetDefaultValues fills unset fields.
func (c *Config) SetDefaultValues() {
	if c.Transaction.TransactionServiceGroup == "" {
		c.Transaction.TransactionServiceGroup = "default_tx_group"
	}
	if c.Transaction.DefaultTimeoutSeconds <= 0 {
		c.Transaction.DefaultTimeoutSeconds = 60
	}
	if c.Transaction.CoordinatorAddress == "" {
		c.Transaction.CoordinatorAddress = "127.0.0.1:8091"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate reports configuration mistakes a user must fix.
func (c *Config) Validate() error {
	if c.Transaction.Enabled && c.Transaction.ApplicationID == "" {
		return smerr.NewBadConfigNoCtx("transaction enabled but application-id is empty")
	}
	if c.Transaction.DefaultTimeoutSeconds < 0 {
		return smerr.NewBadConfigNoCtx("negative default-timeout-seconds %d",
			c.Transaction.DefaultTimeoutSeconds)
	}
	return nil
}

// ParseConfig decodes TOML data, applies defaults and validates.
func ParseConfig(data string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, smerr.NewBadConfigNoCtx("decode config: %v", err)
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, smerr.NewBadConfigNoCtx("read config %s: %v", path, err)
	}
	return ParseConfig(string(data))
}
