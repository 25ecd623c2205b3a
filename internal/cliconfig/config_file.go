package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	Keyspace   string `toml:"keyspace"`
	FreezeTTL  string `toml:"freeze_ttl"`
	ShardCount int    `toml:"shard_count"`

	ColdTier string `toml:"cold_tier"`

	CassandraHosts    []string `toml:"cassandra_hosts"`
	CassandraKeyspace string   `toml:"cassandra_keyspace"`
	CassandraTable    string   `toml:"cassandra_table"`

	S3Region string `toml:"s3_region"`
	S3Bucket string `toml:"s3_bucket"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.kvom/config.toml if the user home directory is
// accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".kvom", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("redis-address", fc.RedisAddress, &cfg.RedisAddress)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)
	s.setString("keyspace", fc.Keyspace, &cfg.Keyspace)
	s.setString("cold-tier", fc.ColdTier, &cfg.ColdTier)
	s.setString("cassandra-keyspace", fc.CassandraKeyspace, &cfg.CassandraKeyspace)
	s.setString("cassandra-table", fc.CassandraTable, &cfg.CassandraTable)
	s.setString("s3-region", fc.S3Region, &cfg.S3Region)
	s.setString("s3-bucket", fc.S3Bucket, &cfg.S3Bucket)

	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setInt("shard-count", fc.ShardCount, &cfg.ShardCount)

	if err := s.setDuration("freeze-ttl", fc.FreezeTTL, &cfg.FreezeTTL); err != nil {
		return err
	}

	if len(fc.CassandraHosts) > 0 && !changed["cassandra-hosts"] {
		cfg.CassandraHosts = fc.CassandraHosts
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
