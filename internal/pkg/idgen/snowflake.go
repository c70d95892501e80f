// Package idgen issues the string IDs used for access-request rows.
// Snowflake IDs embed their creation time, so request listings sort by ID
// without a separate sequence column.
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Initialize configures the generator with the server's node ID. The first
// successful call wins; later calls are no-ops, so a failed call can be
// retried with a valid node ID.
func Initialize(nodeID int64) error {
	mu.Lock()
	defer mu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// NextID returns a fresh access-request ID. Falls back to node 0 when
// Initialize was never called.
func NextID() string {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node, _ = snowflake.NewNode(0)
	}
	return node.Generate().String()
}
