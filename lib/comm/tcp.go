package comm

/* tcp.go contains a process group whose ranks talk over TCP.

Every pair of ranks shares one connection. The lower rank of a pair accepts and
the higher rank dials, sending its rank as the first four bytes. Each message
is sent as a frame:

    [raw length: uint32] [payload length: uint32] [xxhash64 of raw: uint64]
    [payload: zstd-compressed raw bytes]

Empty messages are sent without a payload. */

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
)

const (
	frameHeaderSize = 16
	dialAttempts    = 200
	dialWait        = 50 * time.Millisecond
)

// TCP is one rank of a TCP process group. See Comm for method
// documentation.
type TCP struct {
	rank  int
	conns []net.Conn // conns[rank] is nil
}

var _ Comm = &TCP{}

// ListenTCP listens on the address assigned to the given rank.
func ListenTCP(rank int, addrs []string) (net.Listener, error) {
	if rank < 0 || rank >= len(addrs) {
		return nil, g_error.Configf("Rank %d is outside the %d addresses in the TCP group.", rank, len(addrs))
	}
	ln, err := net.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, errors.Wrapf(err, "rank %d could not listen on %s", rank, addrs[rank])
	}
	return ln, nil
}

// ConnectTCP joins the TCP group described by addrs as the given rank. ln
// must already be listening on addrs[rank]; ConnectTCP takes ownership of it
// and closes it once every peer has connected. Peers which are not yet
// listening are redialed for a few seconds before giving up.
func ConnectTCP(rank int, ln net.Listener, addrs []string) (*TCP, error) {
	size := len(addrs)
	if rank < 0 || rank >= size {
		return nil, g_error.Configf("Rank %d is outside the %d addresses in the TCP group.", rank, size)
	}
	defer ln.Close()

	c := &TCP{rank: rank, conns: make([]net.Conn, size)}

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- c.acceptPeers(ln, size-1-rank) }()

	var dialErr error
	for peer := 0; peer < rank && dialErr == nil; peer++ {
		dialErr = c.dialPeer(peer, addrs[peer])
	}
	if dialErr != nil {
		ln.Close() // unblocks Accept
	}

	if err := <-acceptErr; err != nil || dialErr != nil {
		c.Close()
		if err != nil {
			return nil, err
		}
		return nil, dialErr
	}

	tracer().Debugf("rank %d connected to %d peers", rank, size-1)
	return c, nil
}

func (c *TCP) acceptPeers(ln net.Listener, n int) error {
	for i := 0; i < n; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrapf(err, "rank %d failed to accept a peer", c.rank)
		}

		hdr := make([]byte, 4)
		if _, err := io.ReadFull(conn, hdr); err != nil {
			conn.Close()
			return errors.Wrapf(err, "rank %d failed to read a peer handshake", c.rank)
		}
		peer := int(binary.LittleEndian.Uint32(hdr))
		if peer <= c.rank || peer >= len(c.conns) || c.conns[peer] != nil {
			conn.Close()
			return errors.Newf("rank %d received a handshake from unexpected rank %d", c.rank, peer)
		}
		c.conns[peer] = conn
	}
	return nil
}

func (c *TCP) dialPeer(peer int, addr string) error {
	var conn net.Conn
	var err error
	for i := 0; i < dialAttempts; i++ {
		if conn, err = net.Dial("tcp", addr); err == nil {
			break
		}
		time.Sleep(dialWait)
	}
	if err != nil {
		return errors.Wrapf(err, "rank %d could not reach rank %d at %s", c.rank, peer, addr)
	}

	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(c.rank))
	if _, err := conn.Write(hdr); err != nil {
		conn.Close()
		return errors.Wrapf(err, "rank %d failed to send its handshake to rank %d", c.rank, peer)
	}
	c.conns[peer] = conn
	return nil
}

func (c *TCP) Rank() int { return c.rank }
func (c *TCP) Size() int { return len(c.conns) }

func (c *TCP) Close() error {
	var err error
	for i, conn := range c.conns {
		if conn == nil {
			continue
		}
		err = errors.CombineErrors(err, conn.Close())
		c.conns[i] = nil
	}
	return err
}

func (c *TCP) Alltoall(send []int) ([]int, error) {
	return alltoall(c, c.Size(), send)
}

func (c *TCP) Alltoallv(
	send []byte, sendCounts, sendDisp []int,
	recv []byte, recvCounts, recvDisp []int,
) error {
	return alltoallv(c, c.Size(), send, sendCounts, sendDisp,
		recv, recvCounts, recvDisp)
}

func (c *TCP) exchange(msgs [][]byte) ([][]byte, error) {
	out := make([][]byte, len(msgs))
	out[c.rank] = append([]byte{}, msgs[c.rank]...)

	for peer, conn := range c.conns {
		if peer != c.rank && conn == nil {
			return nil, errors.Newf("rank %d has no open connection to rank %d", c.rank, peer)
		}
	}

	errs := make([]error, 2*len(msgs))
	wg := &sync.WaitGroup{}
	for peer := range c.conns {
		if peer == c.rank {
			continue
		}

		wg.Add(2)
		go func(peer int) {
			defer wg.Done()
			errs[2*peer] = writeFrame(c.conns[peer], msgs[peer])
		}(peer)
		go func(peer int) {
			defer wg.Done()
			out[peer], errs[2*peer+1] = readFrame(c.conns[peer])
		}(peer)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "rank %d exchange with rank %d", c.rank, i/2)
		}
	}
	return out, nil
}

func writeFrame(w io.Writer, raw []byte) error {
	var payload []byte
	if len(raw) > 0 {
		var err error
		if payload, err = zstd.Compress(nil, raw); err != nil {
			return errors.Wrap(err, "compressing frame")
		}
	}

	hdr := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint64(hdr[8:16], xxhash.Sum64(raw))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	hdr := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	rawLen := int(binary.LittleEndian.Uint32(hdr[0:4]))
	payloadLen := int(binary.LittleEndian.Uint32(hdr[4:8]))
	sum := binary.LittleEndian.Uint64(hdr[8:16])

	raw := []byte{}
	if payloadLen > 0 {
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		var err error
		if raw, err = zstd.Decompress(make([]byte, rawLen), payload); err != nil {
			return nil, errors.Wrap(err, "decompressing frame")
		}
	}

	if len(raw) != rawLen {
		return nil, errors.Newf("frame decompressed to %d bytes, but its header promised %d", len(raw), rawLen)
	}
	if xxhash.Sum64(raw) != sum {
		return nil, errors.Newf("checksum mismatch in a %d-byte frame", rawLen)
	}
	return raw, nil
}
