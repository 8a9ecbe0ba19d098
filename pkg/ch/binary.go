package ch

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"reachcore/internal/rerr"
)

const (
	magicBytes = "RCOREPG1"
	version    = uint32(1)
	maxNodes   = 50_000_000
	maxEdges   = 200_000_000
)

type fileHeader struct {
	Magic        [8]byte
	Version      uint32
	NumNodes     uint32
	NumFwdEdges  uint32
	NumDownEdges uint32
}

// WriteBinary serializes a PreparedGraph to an opaque binary blob,
// written to a temp file and renamed into place so a reader never
// observes a partial file.
func WriteBinary(path string, pg *PreparedGraph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return rerr.Resourcef(err, "create temp file")
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := fileHeader{
		Version:      version,
		NumNodes:     pg.NumNodes,
		NumFwdEdges:  uint32(len(pg.FwdTo)),
		NumDownEdges: uint32(len(pg.DownTo)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return rerr.Resourcef(err, "write header")
	}

	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{"Rank", func() error { return writeUint32Slice(cw, pg.Rank) }},
		{"FwdIndPtr", func() error { return writeUint32Slice(cw, pg.FwdIndPtr) }},
		{"FwdTo", func() error { return writeUint32Slice(cw, pg.FwdTo) }},
		{"FwdWeight", func() error { return writeUint32Slice(cw, pg.FwdWeight) }},
		{"DownIndPtr", func() error { return writeUint32Slice(cw, pg.DownIndPtr) }},
		{"DownTo", func() error { return writeUint32Slice(cw, pg.DownTo) }},
		{"DownWeight", func() error { return writeUint32Slice(cw, pg.DownWeight) }},
	} {
		if err := step.fn(); err != nil {
			return rerr.Resourcef(err, "write %s", step.name)
		}
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return rerr.Resourcef(err, "write CRC32")
	}
	if err := f.Close(); err != nil {
		return rerr.Resourcef(err, "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return rerr.Resourcef(err, "rename into place")
	}
	return nil
}

// ReadBinary deserializes a PreparedGraph from an opaque binary blob and
// rebuilds Order (the rank->node permutation) from Rank.
func ReadBinary(path string) (*PreparedGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerr.Resourcef(err, "open")
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, rerr.Decodef(err, "read header")
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, rerr.Decodef(nil, "invalid magic bytes %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, rerr.Decodef(nil, "unsupported version %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, rerr.Decodef(nil, "NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumFwdEdges > maxEdges || hdr.NumDownEdges > maxEdges {
		return nil, rerr.Decodef(nil, "edge count exceeds limit %d", maxEdges)
	}

	pg := &PreparedGraph{NumNodes: hdr.NumNodes}
	var readErr error
	read := func(name string, n int) []uint32 {
		if readErr != nil {
			return nil
		}
		s, err := readUint32Slice(cr, n)
		if err != nil {
			readErr = rerr.Decodef(err, "read %s", name)
		}
		return s
	}

	pg.Rank = read("Rank", int(hdr.NumNodes))
	pg.FwdIndPtr = read("FwdIndPtr", int(hdr.NumNodes+1))
	pg.FwdTo = read("FwdTo", int(hdr.NumFwdEdges))
	pg.FwdWeight = read("FwdWeight", int(hdr.NumFwdEdges))
	pg.DownIndPtr = read("DownIndPtr", int(hdr.NumNodes+1))
	pg.DownTo = read("DownTo", int(hdr.NumDownEdges))
	pg.DownWeight = read("DownWeight", int(hdr.NumDownEdges))
	if readErr != nil {
		return nil, readErr
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, rerr.Decodef(err, "read CRC32")
	}
	if storedCRC != expectedCRC {
		return nil, rerr.Decodef(nil, "CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	pg.Order = make([]uint32, hdr.NumNodes)
	for node, r := range pg.Rank {
		pg.Order[r] = uint32(node)
	}

	return pg, nil
}

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
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

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
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
