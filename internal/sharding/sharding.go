package sharding

import "hash/fnv"

type ShardRouter struct {
	ShardCount int // Number of shards
}

func NewShardRouter(shardCount int) *ShardRouter {
	return &ShardRouter{ShardCount: shardCount}
}

// GetShard hashes the cart identifier onto a shard index so every operation
// for the same identifier lands on the same database.
func (r *ShardRouter) GetShard(identifier string) int {
	h := fnv.New32a()
	h.Write([]byte(identifier))
	return int(h.Sum32()) % r.ShardCount
}
