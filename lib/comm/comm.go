/*package comm is the communication substrate used to move particles between
processes. A group of N ranks exchanges data through collective operations
modeled on MPI_Alltoall and MPI_Alltoallv: every rank in the group must make the
same sequence of calls, and each call blocks until the data from every peer has
arrived. There are no timeouts and no partial results.

Two groups are provided: a Local group whose ranks are goroutines in one
process, and a TCP group whose ranks are separate processes.
*/
package comm

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/npillmayer/schuko/tracing"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
)

// tracer writes to trace with key 'comm'
func tracer() tracing.Trace {
	return tracing.Select("comm")
}

// Comm is a handle to one rank of a process group.
type Comm interface {
	// Rank returns the index of this process in the group.
	Rank() int
	// Size returns the number of processes in the group.
	Size() int
	// Alltoall sends send[i] to rank i and returns an array whose j-th value
	// was sent by rank j.
	Alltoall(send []int) ([]int, error)
	// Alltoallv sends the sendCounts[i] bytes starting at send[sendDisp[i]]
	// to rank i and writes the recvCounts[j] bytes sent by rank j to
	// recv[recvDisp[j]:]. recvCounts must agree with what peers send.
	Alltoallv(send []byte, sendCounts, sendDisp []int,
		recv []byte, recvCounts, recvDisp []int) error
	// Close releases the resources held by this rank.
	Close() error
}

// exchanger is the primitive both groups implement: msgs[i] goes to rank i,
// and the returned out[j] came from rank j.
type exchanger interface {
	exchange(msgs [][]byte) ([][]byte, error)
}

// Displacements returns the exclusive prefix sum of counts.
func Displacements(counts []int) []int {
	disp := make([]int, len(counts))
	for i := 1; i < len(counts); i++ {
		disp[i] = disp[i-1] + counts[i-1]
	}
	return disp
}

// Sum returns the sum of counts.
func Sum(counts []int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// AllreduceSum returns the sum of x over every rank in the group.
func AllreduceSum(c Comm, x int) (int, error) {
	send := make([]int, c.Size())
	for i := range send {
		send[i] = x
	}
	recv, err := c.Alltoall(send)
	if err != nil {
		return 0, err
	}
	return Sum(recv), nil
}

// Barrier blocks until every rank in the group has called it.
func Barrier(c Comm) error {
	_, err := c.Alltoall(make([]int, c.Size()))
	return err
}

func alltoall(ex exchanger, size int, send []int) ([]int, error) {
	if len(send) != size {
		return nil, g_error.Preconditionf("Alltoall given %d values for a group of %d ranks.", len(send), size)
	}

	msgs := make([][]byte, size)
	for i := range msgs {
		msgs[i] = make([]byte, 8)
		binary.LittleEndian.PutUint64(msgs[i], uint64(int64(send[i])))
	}

	out, err := ex.exchange(msgs)
	if err != nil {
		return nil, err
	}

	recv := make([]int, size)
	for j := range out {
		if len(out[j]) != 8 {
			return nil, errors.Newf("Alltoall received %d bytes from rank %d instead of 8.", len(out[j]), j)
		}
		recv[j] = int(int64(binary.LittleEndian.Uint64(out[j])))
	}
	return recv, nil
}

func alltoallv(
	ex exchanger, size int, send []byte, sendCounts, sendDisp []int,
	recv []byte, recvCounts, recvDisp []int,
) error {
	if len(sendCounts) != size || len(sendDisp) != size ||
		len(recvCounts) != size || len(recvDisp) != size {
		return g_error.Preconditionf("Alltoallv count and displacement arrays must all have length %d.", size)
	}

	msgs := make([][]byte, size)
	for i := range msgs {
		lo, hi := sendDisp[i], sendDisp[i]+sendCounts[i]
		if lo < 0 || hi > len(send) {
			return g_error.Preconditionf("Alltoallv send range [%d, %d) for rank %d is outside the %d-byte send buffer.", lo, hi, i, len(send))
		}
		msgs[i] = send[lo:hi]
	}

	out, err := ex.exchange(msgs)
	if err != nil {
		return err
	}

	for j := range out {
		if len(out[j]) != recvCounts[j] {
			return errors.Newf("Alltoallv expected %d bytes from rank %d, but received %d.", recvCounts[j], j, len(out[j]))
		}
		lo, hi := recvDisp[j], recvDisp[j]+recvCounts[j]
		if lo < 0 || hi > len(recv) {
			return g_error.Preconditionf("Alltoallv receive range [%d, %d) for rank %d is outside the %d-byte receive buffer.", lo, hi, j, len(recv))
		}
		copy(recv[lo:hi], out[j])
	}
	return nil
}
