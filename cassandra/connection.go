// Package cassandra implements the kvom cold store over a Cassandra table of
// opaque record dumps keyed by primary key.
package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// Config contains configuration for connecting to a Cassandra cluster and the
// keyspace holding the cold entry table.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace is the keyspace used for the cold entry table.
	Keyspace string
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	ColdStoreGet    gocql.Consistency
	ColdStoreSet    gocql.Consistency
	ColdStoreRemove gocql.Consistency
}

// Connection wraps a Cassandra session and its configuration. Connections are
// passed explicitly to the cold stores that use them.
type Connection struct {
	Session *gocql.Session
	Config
}

// Open connects to the cluster described by config.
func Open(config Config) (*Connection, error) {
	if config.Keyspace == "" {
		// default keyspace
		config.Keyspace = "kvom"
	}
	if config.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		config.Consistency = gocql.LocalQuorum
	}
	cluster := gocql.NewCluster(config.ClusterHosts...)
	cluster.Consistency = config.Consistency
	if config.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		config.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
	}
	if config.Authenticator != nil {
		cluster.Authenticator = config.Authenticator
		// Clear the authenticator just to be safer, we don't need to keep it hanging around.
		config.Authenticator = nil
	}
	s, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("can't connect to Cassandra cluster %v, details: %w", config.ClusterHosts, err)
	}
	return &Connection{
		Session: s,
		Config:  config,
	}, nil
}

// Close ends the session.
func (c *Connection) Close() {
	if c == nil || c.Session == nil {
		return
	}
	c.Session.Close()
	c.Session = nil
}
