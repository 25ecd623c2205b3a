package mem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func (c *Conn) setCmd(cmd command) (any, error) {
	key := argString(cmd.args[0])
	switch cmd.name {
	case "sadd":
		v := c.mustEntry(key)
		if v.Set == nil {
			v.Set = map[string]bool{}
		}
		n := int64(0)
		for _, a := range cmd.args[1:] {
			m := argString(a)
			if !v.Set[m] {
				v.Set[m] = true
				n++
			}
		}
		return n, nil
	case "srem":
		v := c.entry(key)
		if v == nil {
			return int64(0), nil
		}
		n := int64(0)
		for _, a := range cmd.args[1:] {
			m := argString(a)
			if v.Set[m] {
				delete(v.Set, m)
				n++
			}
		}
		c.dropIfEmpty(key)
		return n, nil
	case "smembers":
		var out []any
		if v := c.entry(key); v != nil {
			for _, m := range sortedKeys(v.Set) {
				out = append(out, m)
			}
		}
		return out, nil
	case "scard":
		if v := c.entry(key); v != nil {
			return int64(len(v.Set)), nil
		}
		return int64(0), nil
	case "sismember":
		if v := c.entry(key); v != nil && v.Set[argString(cmd.args[1])] {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("ERR unknown command '%s'", cmd.name)
}

func (c *Conn) listCmd(cmd command) (any, error) {
	key := argString(cmd.args[0])
	switch cmd.name {
	case "lpush":
		v := c.mustEntry(key)
		for _, a := range cmd.args[1:] {
			v.List = append([]string{argString(a)}, v.List...)
		}
		return int64(len(v.List)), nil
	case "rpush":
		v := c.mustEntry(key)
		for _, a := range cmd.args[1:] {
			v.List = append(v.List, argString(a))
		}
		return int64(len(v.List)), nil
	case "llen":
		if v := c.entry(key); v != nil {
			return int64(len(v.List)), nil
		}
		return int64(0), nil
	case "lrange":
		var out []any
		if v := c.entry(key); v != nil {
			start, stop := rangeBounds(argString(cmd.args[1]), argString(cmd.args[2]), len(v.List))
			for i := start; i <= stop; i++ {
				out = append(out, v.List[i])
			}
		}
		return out, nil
	case "lpop":
		v := c.entry(key)
		if v == nil || len(v.List) == 0 {
			return nil, nil
		}
		head := v.List[0]
		v.List = v.List[1:]
		c.dropIfEmpty(key)
		return head, nil
	case "rpop":
		v := c.entry(key)
		if v == nil || len(v.List) == 0 {
			return nil, nil
		}
		tail := v.List[len(v.List)-1]
		v.List = v.List[:len(v.List)-1]
		c.dropIfEmpty(key)
		return tail, nil
	case "lrem":
		v := c.entry(key)
		if v == nil {
			return int64(0), nil
		}
		count, _ := strconv.Atoi(argString(cmd.args[1]))
		target := argString(cmd.args[2])
		removed := int64(0)
		if count < 0 {
			// Negative count removes from the tail.
			limit := int64(-count)
			kept := make([]string, 0, len(v.List))
			for i := len(v.List) - 1; i >= 0; i-- {
				if v.List[i] == target && removed < limit {
					removed++
					continue
				}
				kept = append(kept, v.List[i])
			}
			for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
				kept[l], kept[r] = kept[r], kept[l]
			}
			v.List = kept
		} else {
			kept := v.List[:0]
			for _, s := range v.List {
				if s == target && (count == 0 || removed < int64(count)) {
					removed++
					continue
				}
				kept = append(kept, s)
			}
			v.List = kept
		}
		c.dropIfEmpty(key)
		return removed, nil
	case "ltrim":
		if v := c.entry(key); v != nil {
			start, stop := rangeBounds(argString(cmd.args[1]), argString(cmd.args[2]), len(v.List))
			if start > stop {
				v.List = nil
			} else {
				v.List = v.List[start : stop+1]
			}
			c.dropIfEmpty(key)
		}
		return "OK", nil
	case "lindex":
		if v := c.entry(key); v != nil {
			idx, _ := strconv.Atoi(argString(cmd.args[1]))
			if idx < 0 {
				idx += len(v.List)
			}
			if idx >= 0 && idx < len(v.List) {
				return v.List[idx], nil
			}
		}
		return nil, nil
	case "lset":
		v := c.entry(key)
		if v == nil {
			return nil, fmt.Errorf("ERR no such key")
		}
		idx, _ := strconv.Atoi(argString(cmd.args[1]))
		if idx < 0 {
			idx += len(v.List)
		}
		if idx < 0 || idx >= len(v.List) {
			return nil, fmt.Errorf("ERR index out of range")
		}
		v.List[idx] = argString(cmd.args[2])
		return "OK", nil
	}
	return nil, fmt.Errorf("ERR unknown command '%s'", cmd.name)
}

func (c *Conn) zsetCmd(cmd command) (any, error) {
	key := argString(cmd.args[0])
	switch cmd.name {
	case "zadd":
		v := c.mustEntry(key)
		if v.ZSet == nil {
			v.ZSet = map[string]float64{}
		}
		added := int64(0)
		for i := 1; i+1 < len(cmd.args); i += 2 {
			score, err := strconv.ParseFloat(argString(cmd.args[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("ERR value is not a valid float")
			}
			member := argString(cmd.args[i+1])
			if _, ok := v.ZSet[member]; !ok {
				added++
			}
			v.ZSet[member] = score
		}
		return added, nil
	case "zrem":
		v := c.entry(key)
		if v == nil {
			return int64(0), nil
		}
		n := int64(0)
		for _, a := range cmd.args[1:] {
			m := argString(a)
			if _, ok := v.ZSet[m]; ok {
				delete(v.ZSet, m)
				n++
			}
		}
		c.dropIfEmpty(key)
		return n, nil
	case "zcard":
		if v := c.entry(key); v != nil {
			return int64(len(v.ZSet)), nil
		}
		return int64(0), nil
	case "zscore":
		if v := c.entry(key); v != nil {
			if score, ok := v.ZSet[argString(cmd.args[1])]; ok {
				return strconv.FormatFloat(score, 'g', -1, 64), nil
			}
		}
		return nil, nil
	case "zincrby":
		by, err := strconv.ParseFloat(argString(cmd.args[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("ERR value is not a valid float")
		}
		member := argString(cmd.args[2])
		v := c.mustEntry(key)
		if v.ZSet == nil {
			v.ZSet = map[string]float64{}
		}
		v.ZSet[member] += by
		return strconv.FormatFloat(v.ZSet[member], 'g', -1, 64), nil
	case "zrange":
		var out []any
		if v := c.entry(key); v != nil {
			members := rankedMembers(v.ZSet)
			start, stop := rangeBounds(argString(cmd.args[1]), argString(cmd.args[2]), len(members))
			for i := start; i <= stop; i++ {
				out = append(out, members[i])
			}
		}
		return out, nil
	case "zrank":
		if v := c.entry(key); v != nil {
			for i, m := range rankedMembers(v.ZSet) {
				if m == argString(cmd.args[1]) {
					return int64(i), nil
				}
			}
		}
		return nil, nil
	case "zrangebyscore":
		var out []any
		if v := c.entry(key); v != nil {
			min, minExcl := parseScoreBound(argString(cmd.args[1]), true)
			max, maxExcl := parseScoreBound(argString(cmd.args[2]), false)
			for _, m := range rankedMembers(v.ZSet) {
				s := v.ZSet[m]
				if withinScore(s, min, minExcl, max, maxExcl) {
					out = append(out, m)
				}
			}
		}
		return out, nil
	case "zcount":
		n := int64(0)
		if v := c.entry(key); v != nil {
			min, minExcl := parseScoreBound(argString(cmd.args[1]), true)
			max, maxExcl := parseScoreBound(argString(cmd.args[2]), false)
			for _, s := range v.ZSet {
				if withinScore(s, min, minExcl, max, maxExcl) {
					n++
				}
			}
		}
		return n, nil
	}
	return nil, fmt.Errorf("ERR unknown command '%s'", cmd.name)
}

// rankedMembers orders members by score, ties broken lexically.
func rankedMembers(zset map[string]float64) []string {
	members := sortedKeys(zset)
	sort.SliceStable(members, func(i, j int) bool {
		return zset[members[i]] < zset[members[j]]
	})
	return members
}

func parseScoreBound(s string, isMin bool) (float64, bool) {
	exclusive := false
	if strings.HasPrefix(s, "(") {
		exclusive = true
		s = s[1:]
	}
	switch s {
	case "-inf":
		return -1 << 62, exclusive
	case "+inf", "inf":
		return 1 << 62, exclusive
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f, exclusive
}

func withinScore(s, min float64, minExcl bool, max float64, maxExcl bool) bool {
	if minExcl {
		if s <= min {
			return false
		}
	} else if s < min {
		return false
	}
	if maxExcl {
		if s >= max {
			return false
		}
	} else if s > max {
		return false
	}
	return true
}

// rangeBounds normalizes inclusive start/stop indexes which may be negative
// (offsets from the end). Returned bounds are clamped; start > stop means an
// empty range.
func rangeBounds(startArg, stopArg string, n int) (int, int) {
	start, _ := strconv.Atoi(startArg)
	stop, _ := strconv.Atoi(stopArg)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 1, 0
	}
	return start, stop
}
