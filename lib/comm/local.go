package comm

/* local.go contains a process group whose ranks are goroutines. */

// localGroup connects every ordered pair of ranks with a channel. Each
// collective sends exactly one message per pair and channels are FIFO, so
// messages from consecutive collectives cannot be confused.
type localGroup struct {
	links [][]chan []byte // links[src][dst]
}

// Local is one rank of an in-process group. See Comm for method
// documentation.
type Local struct {
	rank int
	g    *localGroup
}

var _ Comm = &Local{}

// NewLocalGroup creates a group of n ranks. Each rank must be driven from its
// own goroutine, since every collective blocks until all ranks call it.
func NewLocalGroup(n int) []*Local {
	g := &localGroup{links: make([][]chan []byte, n)}
	for src := range g.links {
		g.links[src] = make([]chan []byte, n)
		for dst := range g.links[src] {
			g.links[src][dst] = make(chan []byte, 2)
		}
	}

	ranks := make([]*Local, n)
	for i := range ranks {
		ranks[i] = &Local{i, g}
	}
	return ranks
}

// Self returns a group containing only the calling process.
func Self() Comm { return NewLocalGroup(1)[0] }

func (c *Local) Rank() int    { return c.rank }
func (c *Local) Size() int    { return len(c.g.links) }
func (c *Local) Close() error { return nil }

func (c *Local) Alltoall(send []int) ([]int, error) {
	return alltoall(c, c.Size(), send)
}

func (c *Local) Alltoallv(
	send []byte, sendCounts, sendDisp []int,
	recv []byte, recvCounts, recvDisp []int,
) error {
	return alltoallv(c, c.Size(), send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *Local) exchange(msgs [][]byte) ([][]byte, error) {
	for dst := range msgs {
		// Copy, since the sender is free to reuse its buffer once this
		// returns.
		c.g.links[c.rank][dst] <- append([]byte{}, msgs[dst]...)
	}

	out := make([][]byte, len(msgs))
	for src := range out {
		out[src] = <-c.g.links[src][c.rank]
	}
	return out, nil
}
