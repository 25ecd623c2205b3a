// Package kvom is an object-to-key-value mapping layer over remote
// hash-oriented stores. The root package defines the deferred command
// batching engine (Batch/Future), the interfaces implemented by backend
// connections and cold stores, shared error codes and ambient helpers.
// Concrete backends live in subpackages such as redis, cassandra, awss3 and
// mem, while higher-level features (the tiered object store, the sharded
// index, container wrappers) live in store and containers.
package kvom
