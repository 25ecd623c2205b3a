// Package cliconfig holds the kvomctl configuration and its file, environment
// and flag precedence rules. Flags win over environment variables, which win
// over the config file, which wins over defaults.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cold tier selector values for Config.ColdTier.
const (
	ColdTierMemory    = "memory"
	ColdTierCassandra = "cassandra"
	ColdTierS3        = "s3"
)

// Config holds CLI configuration for kvomctl.
type Config struct {
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	Keyspace   string
	FreezeTTL  time.Duration
	ShardCount int

	ColdTier string

	CassandraHosts    []string
	CassandraKeyspace string
	CassandraTable    string

	S3Region string
	S3Bucket string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		RedisAddress:      "localhost:6379",
		Keyspace:          "kvom",
		FreezeTTL:         5 * time.Minute,
		ShardCount:        64,
		ColdTier:          ColdTierMemory,
		CassandraKeyspace: "kvom",
		CassandraTable:    "cold_entries",
		RedisPassword:     os.Getenv("KVOM_REDIS_PASSWORD"),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.RedisAddress == "" {
		return fmt.Errorf("redis-address is required")
	}
	if c.Keyspace == "" {
		return fmt.Errorf("keyspace is required")
	}
	if c.FreezeTTL < 2*time.Second {
		return fmt.Errorf("freeze-ttl must be at least 2s, got %s", c.FreezeTTL)
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("shard-count must be positive, got %d", c.ShardCount)
	}
	switch c.ColdTier {
	case ColdTierMemory:
	case ColdTierCassandra:
		if len(c.CassandraHosts) == 0 {
			return fmt.Errorf("cassandra-hosts is required for the cassandra cold tier")
		}
	case ColdTierS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket is required for the s3 cold tier")
		}
	default:
		return fmt.Errorf("unknown cold tier %q", c.ColdTier)
	}
	return nil
}

// ApplyEnvConfig applies KVOM_* environment variables. Explicitly set flags
// (tracked via the changed map) keep precedence.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("redis-address", os.Getenv("KVOM_REDIS_ADDR"), &cfg.RedisAddress)
	s.setString("keyspace", os.Getenv("KVOM_KEYSPACE"), &cfg.Keyspace)
	s.setString("cold-tier", os.Getenv("KVOM_COLD_TIER"), &cfg.ColdTier)
	s.setString("s3-bucket", os.Getenv("KVOM_S3_BUCKET"), &cfg.S3Bucket)
	s.setString("s3-region", os.Getenv("KVOM_S3_REGION"), &cfg.S3Region)

	if err := s.setIntFromString("redis-db", os.Getenv("KVOM_REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	if err := s.setIntFromString("shard-count", os.Getenv("KVOM_SHARD_COUNT"), &cfg.ShardCount); err != nil {
		return err
	}
	if err := s.setDuration("freeze-ttl", os.Getenv("KVOM_FREEZE_TTL"), &cfg.FreezeTTL); err != nil {
		return err
	}
	if hosts := os.Getenv("KVOM_CASSANDRA_HOSTS"); hosts != "" && !changed["cassandra-hosts"] {
		cfg.CassandraHosts = splitHosts(hosts)
	}
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
