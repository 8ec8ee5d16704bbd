// Package statusboard maintains the live read-side view of the monitored
// fleet. The engine pushes node updates through its event channel; the board
// mirrors them into a concurrent map so the front-end can read current state
// without touching the engine loop or the database.
package statusboard

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/nodewatch/nodewatch/internal/model"
)

// Board is the concurrent node snapshot. Writers are the relay goroutine and
// the front-end's configuration path; readers are display and export code.
type Board struct {
	nodes *xsync.Map[int64, model.Node]

	wg sync.WaitGroup
}

// New creates an empty Board.
func New() *Board {
	return &Board{nodes: xsync.NewMap[int64, model.Node]()}
}

// Load pre-populates the board, typically from a startup store read.
func (b *Board) Load(nodes []model.Node) {
	for i := range nodes {
		b.nodes.Store(nodes[i].ID, nodes[i].Clone())
	}
}

// Put stores or replaces one node.
func (b *Board) Put(n model.Node) {
	b.nodes.Store(n.ID, n.Clone())
}

// Remove drops a node from the board.
func (b *Board) Remove(id int64) {
	b.nodes.Delete(id)
}

// Get returns a copy of one node.
func (b *Board) Get(id int64) (model.Node, bool) {
	n, ok := b.nodes.Load(id)
	if !ok {
		return model.Node{}, false
	}
	return n.Clone(), true
}

// Size returns the number of nodes on the board.
func (b *Board) Size() int {
	return b.nodes.Size()
}

// Snapshot returns all nodes in display order: explicit display_order first
// (zero means unordered and sorts by id), ties broken by name.
func (b *Board) Snapshot() []model.Node {
	out := make([]model.Node, 0, b.nodes.Size())
	b.nodes.Range(func(_ int64, n model.Node) bool {
		out = append(out, n.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		oi, oj := orderKey(&out[i]), orderKey(&out[j])
		if oi != oj {
			return oi < oj
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func orderKey(n *model.Node) int64 {
	if n.DisplayOrder == 0 {
		return n.ID
	}
	return int64(n.DisplayOrder)
}

// Relay consumes engine updates until the channel closes or stopCh fires,
// mirroring each one onto the board.
func (b *Board) Relay(updates <-chan model.Node, stopCh <-chan struct{}) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case n, ok := <-updates:
				if !ok {
					return
				}
				b.Put(n)
			case <-stopCh:
				return
			}
		}
	}()
}

// Wait blocks until the relay goroutine exits.
func (b *Board) Wait() {
	b.wg.Wait()
}
