package cassandra

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/sharedcode/kvom"
)

type coldStore struct {
	conn  *Connection
	table string
}

// NewColdStore returns a Cassandra-backed implementation of kvom.ColdStore
// over the given table (created by EnsureTable when missing).
func NewColdStore(conn *Connection, table string) (kvom.ColdStore, error) {
	if conn == nil || conn.Session == nil {
		return nil, fmt.Errorf("cassandra connection is closed; call Open(config) to open it")
	}
	if table == "" {
		table = "cold_entries"
	}
	return &coldStore{
		conn:  conn,
		table: table,
	}, nil
}

// EnsureTable creates the cold entry table if it does not exist.
func EnsureTable(ctx context.Context, conn *Connection, table string) error {
	if conn == nil || conn.Session == nil {
		return fmt.Errorf("cassandra connection is closed; call Open(config) to open it")
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (key text PRIMARY KEY, entry blob);",
		conn.Config.Keyspace, table)
	return conn.Session.Query(ddl).WithContext(ctx).Exec()
}

func (s *coldStore) Get(ctx context.Context, key string) ([]byte, error) {
	stmt := fmt.Sprintf("SELECT entry FROM %s.%s WHERE key in (?);", s.conn.Config.Keyspace, s.table)
	qry := s.conn.Session.Query(stmt, key).WithContext(ctx)
	if s.conn.Config.ConsistencyBook.ColdStoreGet > gocql.Any {
		qry.Consistency(s.conn.Config.ConsistencyBook.ColdStoreGet)
	}
	iter := qry.Iter()
	var ba []byte
	for iter.Scan(&ba) {
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return ba, nil
}

func (s *coldStore) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	for _, k := range keys {
		out[k] = nil
	}
	paramQ := make([]string, len(keys))
	keysAsIntfs := make([]interface{}, len(keys))
	for i := range keys {
		paramQ[i] = "?"
		keysAsIntfs[i] = interface{}(keys[i])
	}
	stmt := fmt.Sprintf("SELECT key, entry FROM %s.%s WHERE key in (%v);",
		s.conn.Config.Keyspace, s.table, strings.Join(paramQ, ", "))
	qry := s.conn.Session.Query(stmt, keysAsIntfs...).WithContext(ctx)
	if s.conn.Config.ConsistencyBook.ColdStoreGet > gocql.Any {
		qry.Consistency(s.conn.Config.ConsistencyBook.ColdStoreGet)
	}
	iter := qry.Iter()
	var key string
	var ba []byte
	for iter.Scan(&key, &ba) {
		out[key] = ba
		ba = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *coldStore) Set(ctx context.Context, key string, value []byte) error {
	stmt := fmt.Sprintf("INSERT INTO %s.%s (key, entry) VALUES(?,?);", s.conn.Config.Keyspace, s.table)
	qry := s.conn.Session.Query(stmt, key, value).WithContext(ctx)
	if s.conn.Config.ConsistencyBook.ColdStoreSet > gocql.Any {
		qry.Consistency(s.conn.Config.ConsistencyBook.ColdStoreSet)
	}
	return qry.Exec()
}

func (s *coldStore) SetMulti(ctx context.Context, entries map[string][]byte) error {
	for key, value := range entries {
		if err := s.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *coldStore) Delete(ctx context.Context, key string) error {
	return s.DeleteMulti(ctx, []string{key})
}

func (s *coldStore) DeleteMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	paramQ := make([]string, len(keys))
	keysAsIntfs := make([]interface{}, len(keys))
	for i := range keys {
		paramQ[i] = "?"
		keysAsIntfs[i] = interface{}(keys[i])
	}
	stmt := fmt.Sprintf("DELETE FROM %s.%s WHERE key in (%v);",
		s.conn.Config.Keyspace, s.table, strings.Join(paramQ, ", "))
	qry := s.conn.Session.Query(stmt, keysAsIntfs...).WithContext(ctx)
	if s.conn.Config.ConsistencyBook.ColdStoreRemove > gocql.Any {
		qry.Consistency(s.conn.Config.ConsistencyBook.ColdStoreRemove)
	}
	return qry.Exec()
}
