// Package lock provides per-run mutual exclusion backends.
package lock

import (
	"hash/fnv"

	"github.com/google/uuid"
)

const namespace = "mrp_run"

// advisoryKey64 maps a run id to a stable 64-bit lock key
func advisoryKey64(id uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(id.String()))
	return int64(h.Sum64())
}

func redisKey(id uuid.UUID) string {
	return namespace + ":" + id.String() + ":lock"
}
