/*package pack converts rows of particle data to and from contiguous byte
buffers so that they can be shipped between processes.

A packed buffer for n particles is the concatenation of one column per field,
in field order, each holding n values in the sender's byte order. The receiver
must know n and the field types; both are agreed on before the exchange.
*/
package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/phil-mansfield/pstructs/lib/particles"
)

// SystemByteOrder returns the byte order of the machine the code is running
// on.
func SystemByteOrder() binary.ByteOrder {
	// See https://stackoverflow.com/questions/51332658/any-better-way-to-check-endianness-in-go/51332762
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// RecordSize returns the number of bytes Encode uses per particle.
func RecordSize(s particles.Schema) int { return s.RecordSize() }

// Encode appends the particles at the indices idx of p to buf and returns the
// extended buffer.
func Encode(order binary.ByteOrder, p particles.Particles, idx []int, buf []byte) ([]byte, error) {
	out := bytes.NewBuffer(buf)
	to := particles.Sequence(len(idx), 0)

	for _, f := range p {
		dest := f.CreateDestination(len(idx))
		if err := f.Transfer(dest, idx, to); err != nil {
			return nil, err
		}
		if err := writeAsBytes(out, order, dest.Data()); err != nil {
			return nil, err
		}
	}

	return out.Bytes(), nil
}

// Decode reads n particles with the given schema from b. b must contain exactly
// n*RecordSize(s) bytes.
func Decode(order binary.ByteOrder, s particles.Schema, b []byte, n int) (particles.Particles, error) {
	if len(b) != n*s.RecordSize() {
		return nil, fmt.Errorf("Buffer has %d bytes, but %d particles of %d bytes each were expected.", len(b), n, s.RecordSize())
	}

	rd := bytes.NewReader(b)
	p := s.Buffers(n)
	for _, f := range p {
		if err := readAsBytes(rd, order, f.Data()); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func writeAsBytes(wr *bytes.Buffer, order binary.ByteOrder, buf interface{}) error {
	switch x := buf.(type) {
	case []int32:
		return binary.Write(wr, order, x)
	case []int64:
		return binary.Write(wr, order, x)
	case []uint32:
		return binary.Write(wr, order, x)
	case []uint64:
		return binary.Write(wr, order, x)
	case []float32:
		return binary.Write(wr, order, x)
	case []float64:
		return binary.Write(wr, order, x)
	case [][3]float32:
		// binary.Write goes through reflect for arrays of arrays, which is
		// slow and allocates per value, so flatten first.
		flat := make([]float32, 3*len(x))
		for i := range x {
			copy(flat[3*i:3*i+3], x[i][:])
		}
		return binary.Write(wr, order, flat)
	case [][3]float64:
		flat := make([]float64, 3*len(x))
		for i := range x {
			copy(flat[3*i:3*i+3], x[i][:])
		}
		return binary.Write(wr, order, flat)
	}

	return fmt.Errorf("Internal error: unrecognized type of internal buffer, %T.", buf)
}

func readAsBytes(rd *bytes.Reader, order binary.ByteOrder, buf interface{}) error {
	switch x := buf.(type) {
	case []int32:
		return binary.Read(rd, order, x)
	case []int64:
		return binary.Read(rd, order, x)
	case []uint32:
		return binary.Read(rd, order, x)
	case []uint64:
		return binary.Read(rd, order, x)
	case []float32:
		return binary.Read(rd, order, x)
	case []float64:
		return binary.Read(rd, order, x)
	case [][3]float32:
		flat := make([]float32, 3*len(x))
		if err := binary.Read(rd, order, flat); err != nil {
			return err
		}
		for i := range x {
			copy(x[i][:], flat[3*i:3*i+3])
		}
		return nil
	case [][3]float64:
		flat := make([]float64, 3*len(x))
		if err := binary.Read(rd, order, flat); err != nil {
			return err
		}
		for i := range x {
			copy(x[i][:], flat[3*i:3*i+3])
		}
		return nil
	}

	return fmt.Errorf("Internal error: unrecognized type of internal buffer, %T.", buf)
}
