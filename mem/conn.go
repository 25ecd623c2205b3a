// Package mem provides in-memory implementations of the kvom backend
// interfaces: a Conn speaking the hash-store command set (including DUMP /
// RESTORE-NX with checksum verification and key expiry) and a ColdStore.
// They back the test suites and the local demo mode of kvomctl.
package mem

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sharedcode/kvom"
)

// Now returns the current time and can be "synthesized" by tests.
var Now = time.Now

// value is one keyed entry; exactly one member is populated, mirroring the
// one-type-per-key rule of the wire protocol.
type value struct {
	Hash map[string]string  `json:"h,omitempty"`
	Str  *string            `json:"s,omitempty"`
	List []string           `json:"l,omitempty"`
	Set  map[string]bool    `json:"t,omitempty"`
	ZSet map[string]float64 `json:"z,omitempty"`
}

// Conn is an in-memory backend connection. Each Conn owns an isolated
// keyspace; distinct Conn instances model distinct backend servers.
type Conn struct {
	name string

	mu      sync.Mutex
	values  map[string]*value
	expiry  map[string]time.Time
	failErr error
}

func NewConn(name string) *Conn {
	return &Conn{
		name:   name,
		values: make(map[string]*value),
		expiry: make(map[string]time.Time),
	}
}

func (c *Conn) ID() string {
	return c.name
}

// NewBatch opens a native command batch against this connection.
func (c *Conn) NewBatch() kvom.NativeBatch {
	return &batch{conn: c}
}

// FailNextExecute makes the next batch round trip on this connection fail
// with err. Used by tests to exercise partial-failure semantics.
func (c *Conn) FailNextExecute(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

// Expire immediately ages out any key whose TTL deadline passed, as if the
// clock jumped past it. Tests use it together with Now.
func (c *Conn) purgeExpired(key string) {
	if deadline, ok := c.expiry[key]; ok && !Now().Before(deadline) {
		delete(c.values, key)
		delete(c.expiry, key)
	}
}

type command struct {
	name string
	args []any
}

type batch struct {
	conn *Conn
	cmds []command
}

func (b *batch) Enqueue(cmd string, args ...any) {
	b.cmds = append(b.cmds, command{name: strings.ToLower(cmd), args: args})
}

func (b *batch) Len() int {
	return len(b.cmds)
}

// Execute plays the buffered commands in order under the connection lock.
// Any command error fails the whole round trip, matching the pipelined
// client's first-error semantics.
func (b *batch) Execute(ctx context.Context) ([]any, error) {
	c := b.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failErr != nil {
		err := c.failErr
		c.failErr = nil
		return nil, err
	}

	results := make([]any, 0, len(b.cmds))
	for _, cmd := range b.cmds {
		res, err := c.apply(cmd)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *Conn) entry(key string) *value {
	c.purgeExpired(key)
	return c.values[key]
}

func (c *Conn) mustEntry(key string) *value {
	c.purgeExpired(key)
	v, ok := c.values[key]
	if !ok {
		v = &value{}
		c.values[key] = v
	}
	return v
}

func (c *Conn) dropIfEmpty(key string) {
	v, ok := c.values[key]
	if !ok {
		return
	}
	if len(v.Hash) == 0 && v.Str == nil && len(v.List) == 0 && len(v.Set) == 0 && len(v.ZSet) == 0 {
		delete(c.values, key)
		delete(c.expiry, key)
	}
}

func (c *Conn) apply(cmd command) (any, error) {
	switch cmd.name {
	case "hset":
		return c.hset(cmd.args, false)
	case "hsetnx":
		return c.hset(cmd.args, true)
	case "hdel":
		return c.hdel(cmd.args)
	case "hget":
		key, field := argString(cmd.args[0]), argString(cmd.args[1])
		if v := c.entry(key); v != nil {
			if s, ok := v.Hash[field]; ok {
				return s, nil
			}
		}
		return nil, nil
	case "hmget":
		key := argString(cmd.args[0])
		out := make([]any, 0, len(cmd.args)-1)
		v := c.entry(key)
		for _, a := range cmd.args[1:] {
			if v != nil {
				if s, ok := v.Hash[argString(a)]; ok {
					out = append(out, s)
					continue
				}
			}
			out = append(out, nil)
		}
		return out, nil
	case "hgetall":
		out := map[string]string{}
		if v := c.entry(argString(cmd.args[0])); v != nil {
			for f, s := range v.Hash {
				out[f] = s
			}
		}
		return out, nil
	case "hlen":
		if v := c.entry(argString(cmd.args[0])); v != nil {
			return int64(len(v.Hash)), nil
		}
		return int64(0), nil
	case "hexists":
		if v := c.entry(argString(cmd.args[0])); v != nil {
			if _, ok := v.Hash[argString(cmd.args[1])]; ok {
				return int64(1), nil
			}
		}
		return int64(0), nil
	case "hincrby":
		key, field := argString(cmd.args[0]), argString(cmd.args[1])
		by, err := strconv.ParseInt(argString(cmd.args[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ERR value is not an integer or out of range")
		}
		v := c.mustEntry(key)
		if v.Hash == nil {
			v.Hash = map[string]string{}
		}
		cur, _ := strconv.ParseInt(v.Hash[field], 10, 64)
		cur += by
		v.Hash[field] = strconv.FormatInt(cur, 10)
		return cur, nil
	case "hkeys":
		var out []any
		if v := c.entry(argString(cmd.args[0])); v != nil {
			for _, f := range sortedKeys(v.Hash) {
				out = append(out, f)
			}
		}
		return out, nil

	case "set":
		v := c.mustEntry(argString(cmd.args[0]))
		s := argString(cmd.args[1])
		v.Str = &s
		return "OK", nil
	case "setnx":
		key := argString(cmd.args[0])
		if c.entry(key) != nil {
			return int64(0), nil
		}
		s := argString(cmd.args[1])
		c.mustEntry(key).Str = &s
		return int64(1), nil
	case "get":
		if v := c.entry(argString(cmd.args[0])); v != nil && v.Str != nil {
			return *v.Str, nil
		}
		return nil, nil
	case "incr":
		return c.incrBy(argString(cmd.args[0]), 1)
	case "incrby":
		by, _ := strconv.ParseInt(argString(cmd.args[1]), 10, 64)
		return c.incrBy(argString(cmd.args[0]), by)

	case "del":
		n := int64(0)
		for _, a := range cmd.args {
			key := argString(a)
			if c.entry(key) != nil {
				delete(c.values, key)
				delete(c.expiry, key)
				n++
			}
		}
		return n, nil
	case "exists":
		n := int64(0)
		for _, a := range cmd.args {
			if c.entry(argString(a)) != nil {
				n++
			}
		}
		return n, nil
	case "expire":
		key := argString(cmd.args[0])
		secs, err := strconv.ParseInt(argString(cmd.args[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ERR value is not an integer or out of range")
		}
		if c.entry(key) == nil {
			return int64(0), nil
		}
		c.expiry[key] = Now().Add(time.Duration(secs) * time.Second)
		return int64(1), nil
	case "persist":
		key := argString(cmd.args[0])
		if _, ok := c.expiry[key]; ok && c.entry(key) != nil {
			delete(c.expiry, key)
			return int64(1), nil
		}
		return int64(0), nil
	case "ttl":
		key := argString(cmd.args[0])
		if c.entry(key) == nil {
			return int64(-2), nil
		}
		deadline, ok := c.expiry[key]
		if !ok {
			return int64(-1), nil
		}
		return int64(deadline.Sub(Now()).Round(time.Second) / time.Second), nil
	case "dump":
		v := c.entry(argString(cmd.args[0]))
		if v == nil {
			return nil, nil
		}
		return string(encodeDump(v)), nil
	case "restorenx":
		return c.restoreNX(cmd.args)

	case "sadd", "srem", "smembers", "scard", "sismember":
		return c.setCmd(cmd)
	case "lpush", "rpush", "lrange", "llen", "lpop", "rpop", "lrem", "ltrim", "lindex", "lset":
		return c.listCmd(cmd)
	case "zadd", "zrem", "zrange", "zscore", "zcard", "zincrby", "zrangebyscore", "zrank", "zcount":
		return c.zsetCmd(cmd)
	}
	return nil, fmt.Errorf("ERR unknown command '%s'", cmd.name)
}

func (c *Conn) incrBy(key string, by int64) (any, error) {
	v := c.mustEntry(key)
	var cur int64
	if v.Str != nil {
		n, err := strconv.ParseInt(*v.Str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ERR value is not an integer or out of range")
		}
		cur = n
	}
	cur += by
	s := strconv.FormatInt(cur, 10)
	v.Str = &s
	return cur, nil
}

func (c *Conn) hset(args []any, nx bool) (any, error) {
	key := argString(args[0])
	v := c.mustEntry(key)
	if v.Hash == nil {
		v.Hash = map[string]string{}
	}
	added := int64(0)
	for i := 1; i+1 < len(args); i += 2 {
		field, val := argString(args[i]), argString(args[i+1])
		_, exists := v.Hash[field]
		if nx && exists {
			return int64(0), nil
		}
		if !exists {
			added++
		}
		v.Hash[field] = val
	}
	if nx {
		return int64(1), nil
	}
	return added, nil
}

func (c *Conn) hdel(args []any) (any, error) {
	key := argString(args[0])
	v := c.entry(key)
	if v == nil {
		return int64(0), nil
	}
	n := int64(0)
	for _, a := range args[1:] {
		field := argString(a)
		if _, ok := v.Hash[field]; ok {
			delete(v.Hash, field)
			n++
		}
	}
	c.dropIfEmpty(key)
	return n, nil
}

// corruptDumpError matches the wire protocol's RESTORE failure text so the
// tiered store's recovery path sees the same error either way.
var corruptDumpError = fmt.Errorf("ERR DUMP payload version or checksum are wrong")

func (c *Conn) restoreNX(args []any) (any, error) {
	key := argString(args[0])
	pttl, _ := strconv.ParseInt(argString(args[1]), 10, 64)
	data := []byte(argString(args[2]))

	v, err := decodeDump(data)
	if err != nil {
		return nil, err
	}
	if c.entry(key) != nil {
		return int64(0), nil
	}
	c.values[key] = v
	if pttl > 0 {
		c.expiry[key] = Now().Add(time.Duration(pttl) * time.Millisecond)
	}
	return int64(1), nil
}

// encodeDump serializes a value with a trailing CRC so corruption is
// detectable on restore, like the wire protocol's DUMP payload.
func encodeDump(v *value) []byte {
	payload, _ := json.Marshal(v)
	sum := make([]byte, 4)
	binary.BigEndian.PutUint32(sum, crc32.ChecksumIEEE(payload))
	return append(payload, sum...)
}

func decodeDump(data []byte) (*value, error) {
	if len(data) < 4 {
		return nil, corruptDumpError
	}
	payload, sum := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(sum) {
		return nil, corruptDumpError
	}
	var v value
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, corruptDumpError
	}
	return &v, nil
}

func argString(a any) string {
	switch t := a.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
