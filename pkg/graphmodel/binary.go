package graphmodel

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"cpdrouter/pkg/cpderr"
)

// Graph binary cache: a separate, simpler on-disk format from the CPD file
// (see pkg/cpd/file.go), used so preprocess/query invocations do not need
// to re-run a text parser on every run. Grounded on the CSR-graph binary
// cache pattern of storing a fixed header, raw little-endian arrays, and a
// CRC32 trailer with atomic rename-on-write.
const (
	graphMagic   = "CPDGRPH1"
	graphVersion = uint32(1)
)

type graphFileHeader struct {
	Magic       [8]byte
	Version     uint32
	NumVertices uint32
	NumEdges    uint32
	Flags       uint32 // bit 0: Euclidean; bit 1: has Lat/Lon; bit 2: has ExternalID
}

const (
	flagEuclidean = 1 << 0
	flagHasLatLon = 1 << 1
	flagHasExtID  = 1 << 2
	flagOctile    = 1 << 3
)

// WriteGraphBinary serializes g to path using an atomic temp-file rename.
func WriteGraphBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	var flags uint32
	if g.Euclidean {
		flags |= flagEuclidean
	}
	if g.Lat != nil {
		flags |= flagHasLatLon
	}
	if g.ExternalID != nil {
		flags |= flagHasExtID
	}
	if g.Octile {
		flags |= flagOctile
	}

	hdr := graphFileHeader{
		Version:     graphVersion,
		NumVertices: g.NumVertices,
		NumEdges:    g.NumEdges(),
		Flags:       flags,
	}
	copy(hdr.Magic[:], graphMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write header: %w", err))
	}

	if err := writeUint32Slice(cw, g.FirstOut); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write FirstOut: %w", err))
	}
	if err := writeUint32Slice(cw, g.Head); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write Head: %w", err))
	}
	if err := writeFloat64Slice(cw, g.Weight); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write Weight: %w", err))
	}

	if flags&flagHasLatLon != 0 {
		if err := writeFloat64Slice(cw, g.Lat); err != nil {
			return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write Lat: %w", err))
		}
		if err := writeFloat64Slice(cw, g.Lon); err != nil {
			return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write Lon: %w", err))
		}
	} else {
		if err := writeInt32Slice(cw, g.X); err != nil {
			return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write X: %w", err))
		}
		if err := writeInt32Slice(cw, g.Y); err != nil {
			return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write Y: %w", err))
		}
	}

	if flags&flagHasExtID != 0 {
		if err := writeUint64Slice(cw, g.ExternalID); err != nil {
			return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write ExternalID: %w", err))
		}
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", fmt.Errorf("write checksum: %w", err))
	}
	if err := f.Close(); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cpderr.New(cpderr.KindIO, "graphmodel.WriteGraphBinary", err)
	}
	return nil
}

// ReadGraphBinary loads a Graph previously written by WriteGraphBinary,
// verifying the CRC32 trailer before returning.
func ReadGraphBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr graphFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read header: %w", err))
	}
	if string(hdr.Magic[:]) != graphMagic {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("bad magic %q", hdr.Magic))
	}
	if hdr.Version != graphVersion {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("unsupported version %d", hdr.Version))
	}

	g := &Graph{
		NumVertices: hdr.NumVertices,
		Euclidean:   hdr.Flags&flagEuclidean != 0,
		Octile:      hdr.Flags&flagOctile != 0,
	}

	if g.FirstOut, err = readUint32Slice(cr, int(hdr.NumVertices+1)); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read FirstOut: %w", err))
	}
	if g.Head, err = readUint32Slice(cr, int(hdr.NumEdges)); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read Head: %w", err))
	}
	if g.Weight, err = readFloat64Slice(cr, int(hdr.NumEdges)); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read Weight: %w", err))
	}

	if hdr.Flags&flagHasLatLon != 0 {
		if g.Lat, err = readFloat64Slice(cr, int(hdr.NumVertices)); err != nil {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read Lat: %w", err))
		}
		if g.Lon, err = readFloat64Slice(cr, int(hdr.NumVertices)); err != nil {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read Lon: %w", err))
		}
	} else {
		if g.X, err = readInt32Slice(cr, int(hdr.NumVertices)); err != nil {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read X: %w", err))
		}
		if g.Y, err = readInt32Slice(cr, int(hdr.NumVertices)); err != nil {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read Y: %w", err))
		}
	}

	if hdr.Flags&flagHasExtID != 0 {
		if g.ExternalID, err = readUint64Slice(cr, int(hdr.NumVertices)); err != nil {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read ExternalID: %w", err))
		}
	}

	expected := cr.hash.Sum32()
	var stored uint32
	if err := binary.Read(f, binary.LittleEndian, &stored); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("read checksum: %w", err))
	}
	if stored != expected {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.ReadGraphBinary", fmt.Errorf("checksum mismatch: stored=%08x computed=%08x", stored, expected))
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Zero-copy slice I/O, adapted from the teacher's binary codec.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writeUint64Slice(w io.Writer, s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readUint64Slice(r io.Reader, n int) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
