package cpd

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/order"
)

// On-disk CPD format: magic, version, num_vertices, to_new[], to_old[],
// num_runs, row_begin[], packed runs, trailer checksum. Every field is
// stored at its full width, so a round trip reproduces the ordering,
// row_begin table and runs exactly.
const (
	fileMagic   = "CPDF"
	fileVersion = uint32(1)
)

type fileHeader struct {
	Magic       [4]byte
	Version     uint32
	NumVertices uint32
}

// packedRun is the on-disk layout of a Run: 4 bytes start column, 1 byte
// symbol. Not naturally aligned, so it is written/read field by field
// rather than reinterpreted via unsafe.Slice.
type packedRun struct {
	StartColumn uint32
	Symbol      uint8
}

const packedRunSize = 5

// Save writes c to path using an atomic temp-file rename, matching the
// graph binary cache's write pattern.
func Save(path string, c *CPD) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := fileHeader{Version: fileVersion, NumVertices: c.NumVertices()}
	copy(hdr.Magic[:], fileMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write header: %w", err))
	}
	if err := writeUint32Slice(cw, c.Order.ToNew); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write to_new: %w", err))
	}
	if err := writeUint32Slice(cw, c.Order.ToOld); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write to_old: %w", err))
	}
	numRuns := uint64(len(c.Runs))
	if err := binary.Write(cw, binary.LittleEndian, numRuns); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write num_runs: %w", err))
	}
	if err := writeUint64Slice(cw, c.RowBegin); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write row_begin: %w", err))
	}
	if err := writeRuns(cw, c.Runs); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write runs: %w", err))
	}

	checksum := uint64(cw.hash.Sum32())
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", fmt.Errorf("write checksum: %w", err))
	}
	if err := f.Close(); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cpderr.New(cpderr.KindIO, "cpd.Save", err)
	}
	return nil
}

// Load reads a CPD previously written by Save, verifying the trailer
// checksum before returning.
func Load(path string) (*CPD, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read header: %w", err))
	}
	if string(hdr.Magic[:]) != fileMagic {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("bad magic %q", hdr.Magic))
	}
	if hdr.Version != fileVersion {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("unsupported version %d", hdr.Version))
	}

	toNew, err := readUint32Slice(cr, int(hdr.NumVertices))
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read to_new: %w", err))
	}
	toOld, err := readUint32Slice(cr, int(hdr.NumVertices))
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read to_old: %w", err))
	}

	var numRuns uint64
	if err := binary.Read(cr, binary.LittleEndian, &numRuns); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read num_runs: %w", err))
	}

	rowBegin, err := readUint64Slice(cr, int(hdr.NumVertices)+1)
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read row_begin: %w", err))
	}
	if rowBegin[len(rowBegin)-1] != numRuns {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("row_begin trailer %d != num_runs %d", rowBegin[len(rowBegin)-1], numRuns))
	}

	runs, err := readRuns(cr, int(numRuns))
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read runs: %w", err))
	}

	expected := uint64(cr.hash.Sum32())
	var stored uint64
	if err := binary.Read(f, binary.LittleEndian, &stored); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("read checksum: %w", err))
	}
	if stored != expected {
		return nil, cpderr.New(cpderr.KindIO, "cpd.Load", fmt.Errorf("checksum mismatch: stored=%016x computed=%016x", stored, expected))
	}

	return &CPD{
		Order:    &order.Ordering{ToNew: toNew, ToOld: toOld},
		RowBegin: rowBegin,
		Runs:     runs,
	}, nil
}

func writeRuns(w io.Writer, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}
	buf := make([]byte, len(runs)*packedRunSize)
	for i, r := range runs {
		off := i * packedRunSize
		binary.LittleEndian.PutUint32(buf[off:], r.StartColumn)
		buf[off+4] = byte(r.Symbol)
	}
	_, err := w.Write(buf)
	return err
}

func readRuns(r io.Reader, n int) ([]Run, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n*packedRunSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	runs := make([]Run, n)
	for i := range runs {
		off := i * packedRunSize
		runs[i] = Run{
			StartColumn: binary.LittleEndian.Uint32(buf[off:]),
			Symbol:      Symbol(buf[off+4]),
		}
	}
	return runs, nil
}

// Zero-copy helpers shared with the shape of pkg/graphmodel's binary codec;
// duplicated rather than exported cross-package to keep the two file
// formats independently versionable.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
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
