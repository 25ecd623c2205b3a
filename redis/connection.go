// Package redis implements the kvom backend connection over go-redis,
// batching commands through native pipelining.
package redis

import (
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis configurable options.
type Options struct {
	// Redis server(cluster) address.
	Address string
	// Name distinguishes this connection in batch grouping and logs; it
	// defaults to the address and DB.
	Name string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
}

// Connection wraps a Redis client and the Options used to connect. It is
// passed explicitly to the stores that use it; there is no package-level
// default connection.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

// Open creates a connection with the given options.
func Open(options Options) *Connection {
	if options.Name == "" {
		options.Name = fmt.Sprintf("redis://%s/%d", options.Address, options.DB)
	}
	client := redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB})

	return &Connection{
		Client:  client,
		Options: options,
	}
}

// Close the connection.
func (c *Connection) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	err := c.Client.Close()
	c.Client = nil
	return err
}

// ID identifies the connection for batch grouping.
func (c *Connection) ID() string {
	return c.Options.Name
}
