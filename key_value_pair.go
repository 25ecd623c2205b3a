package kvom

// KeyValuePair is a tuple, used by the sorted-set container and the sharded
// index to carry a member (or key) alongside its score or value.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}
