package comm

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGroup calls fn once per rank, each in its own goroutine, and waits.
func runGroup(t *testing.T, comms []Comm, fn func(c Comm) error) {
	errs := make([]error, len(comms))
	wg := &sync.WaitGroup{}
	for i := range comms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(comms[i])
		}(i)
	}
	wg.Wait()
	for i := range errs {
		require.NoError(t, errs[i], "rank %d", i)
	}
}

func localComms(n int) []Comm {
	local := NewLocalGroup(n)
	comms := make([]Comm, n)
	for i := range comms {
		comms[i] = local[i]
	}
	return comms
}

func tcpComms(t *testing.T, n int) []Comm {
	lns := make([]net.Listener, n)
	addrs := make([]string, n)
	for i := range lns {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		lns[i], addrs[i] = ln, ln.Addr().String()
	}

	comms := make([]Comm, n)
	errs := make([]error, n)
	wg := &sync.WaitGroup{}
	for i := range comms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var c *TCP
			c, errs[i] = ConnectTCP(i, lns[i], addrs)
			comms[i] = c
		}(i)
	}
	wg.Wait()
	for i := range errs {
		require.NoError(t, errs[i])
	}
	return comms
}

// checkCollectives runs a few rounds of both collectives and checks that
// every rank sees the expected data.
func checkCollectives(t *testing.T, comms []Comm) {
	n := len(comms)
	runGroup(t, comms, func(c Comm) error {
		for round := 0; round < 3; round++ {
			send := make([]int, n)
			for i := range send {
				send[i] = 100*c.Rank() + i + round
			}
			recv, err := c.Alltoall(send)
			if err != nil {
				return err
			}
			for j := range recv {
				if recv[j] != 100*j+c.Rank()+round {
					return fmt.Errorf("round %d: rank %d got %d from %d", round, c.Rank(), recv[j], j)
				}
			}

			// Rank r sends r+j+round copies of the byte r to rank j.
			sendCounts := make([]int, n)
			for j := range sendCounts {
				sendCounts[j] = c.Rank() + j + round
			}
			sendBuf := bytes.Repeat([]byte{byte(c.Rank())}, Sum(sendCounts))

			recvCounts, err := c.Alltoall(sendCounts)
			if err != nil {
				return err
			}
			recvBuf := make([]byte, Sum(recvCounts))
			err = c.Alltoallv(sendBuf, sendCounts, Displacements(sendCounts),
				recvBuf, recvCounts, Displacements(recvCounts))
			if err != nil {
				return err
			}

			disp := Displacements(recvCounts)
			for j := range recvCounts {
				want := bytes.Repeat([]byte{byte(j)}, j+c.Rank()+round)
				got := recvBuf[disp[j] : disp[j]+recvCounts[j]]
				if !bytes.Equal(want, got) {
					return fmt.Errorf("round %d: rank %d got %v from %d", round, c.Rank(), got, j)
				}
			}
		}

		total, err := AllreduceSum(c, c.Rank()+1)
		if err != nil {
			return err
		}
		if total != n*(n+1)/2 {
			return fmt.Errorf("rank %d reduced to %d", c.Rank(), total)
		}
		return Barrier(c)
	})
}

func TestDisplacements(t *testing.T) {
	assert.Equal(t, []int{0, 3, 3, 7}, Displacements([]int{3, 0, 4, 1}))
	assert.Equal(t, []int{}, Displacements([]int{}))
	assert.Equal(t, 8, Sum([]int{3, 0, 4, 1}))
}

func TestSelf(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())

	recv, err := c.Alltoall([]int{5})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, recv)

	out := make([]byte, 3)
	require.NoError(t, c.Alltoallv([]byte("abc"), []int{3}, []int{0},
		out, []int{3}, []int{0}))
	assert.Equal(t, "abc", string(out))

	_, err = c.Alltoall([]int{1, 2})
	assert.Error(t, err)
	assert.Error(t, c.Alltoallv([]byte("abc"), []int{3}, []int{0},
		out, []int{2}, []int{0}))
	assert.NoError(t, c.Close())
}

func TestLocalGroup(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		checkCollectives(t, localComms(n))
	}
}

func TestTCPGroup(t *testing.T) {
	for _, n := range []int{1, 3} {
		comms := tcpComms(t, n)
		checkCollectives(t, comms)
		for _, c := range comms {
			assert.NoError(t, c.Close())
		}
	}
}

func TestFrames(t *testing.T) {
	buf := &bytes.Buffer{}
	msgs := [][]byte{
		{}, []byte("x"), bytes.Repeat([]byte("compressible "), 1000),
	}
	for _, m := range msgs {
		require.NoError(t, writeFrame(buf, m))
	}
	for _, m := range msgs {
		got, err := readFrame(buf)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	require.NoError(t, writeFrame(buf, []byte("corrupt me")))
	b := buf.Bytes()
	b[8] ^= 0xff
	_, err := readFrame(buf)
	assert.Error(t, err)
}

func TestConnectBadRank(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, err = ConnectTCP(2, ln, []string{ln.Addr().String()})
	assert.Error(t, err)
	ln.Close()
}
