package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/kvom"
)

// luaRestoreNX is a conditional RESTORE: it no-ops when the destination key
// already exists, so a thaw can't clobber a concurrent writer.
const luaRestoreNX = `
local key = KEYS[1]
local pttl = ARGV[1]
local data = ARGV[2]
local res = redis.call('exists', key)
if res == 0 then
    redis.call('restore', key, pttl, data)
    return 1
else
    return 0
end
`

// NewBatch opens a native pipelined batch owned by its caller and discarded
// after execution.
func (c *Connection) NewBatch() kvom.NativeBatch {
	return &nativeBatch{client: c.Client}
}

type queuedCommand struct {
	name string
	args []any
}

type nativeBatch struct {
	client *redis.Client
	cmds   []queuedCommand
}

func (b *nativeBatch) Enqueue(cmd string, args ...any) {
	b.cmds = append(b.cmds, queuedCommand{name: cmd, args: args})
}

func (b *nativeBatch) Len() int {
	return len(b.cmds)
}

// Execute plays the buffered commands in one pipelined round trip and returns
// one raw reply per command in enqueue order. Key-not-found replies come back
// as nil values, not errors.
func (b *nativeBatch) Execute(ctx context.Context) ([]any, error) {
	pipe := b.client.Pipeline()
	holders := make([]*redis.Cmd, len(b.cmds))
	for i, qc := range b.cmds {
		if qc.name == "restorenx" {
			if len(qc.args) != 3 {
				return nil, fmt.Errorf("restorenx wants key, pttl, data; got %d args", len(qc.args))
			}
			key := fmt.Sprintf("%v", qc.args[0])
			holders[i] = pipe.Eval(ctx, luaRestoreNX, []string{key}, qc.args[1], qc.args[2])
			continue
		}
		args := make([]any, 0, len(qc.args)+1)
		args = append(args, qc.name)
		args = append(args, qc.args...)
		holders[i] = pipe.Do(ctx, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	results := make([]any, len(holders))
	for i, h := range holders {
		v, err := h.Result()
		if err == redis.Nil {
			results[i] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}
