package snowflake

import (
	"sync"
	"time"
)

const (
	// custom epoch (2024-01-01 00:00:00 UTC)
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = nodeBits + sequenceBits
)

// ID is a time-ordered 63-bit identifier. IDs generated later compare
// greater, which gives message rows a stable storage order with
// millisecond timestamp ties broken by sequence.
type ID int64

// Int64 converts the ID to int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// Node generates IDs for a single process instance.
type Node struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
}

// NewNode creates a generator. nodeID outside [0,1023] falls back to 1.
func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		nodeID = 1
	}
	return &Node{nodeID: nodeID}, nil
}

// Generate returns the next ID.
func (n *Node) Generate() ID {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == n.lastTime {
		n.sequence = (n.sequence + 1) & maxSequence
		if n.sequence == 0 {
			// sequence exhausted, wait for the next millisecond
			for now <= n.lastTime {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.sequence = 0
	}

	n.lastTime = now

	id := ((now - epoch) << timestampShift) |
		(n.nodeID << nodeShift) |
		n.sequence

	return ID(id)
}
