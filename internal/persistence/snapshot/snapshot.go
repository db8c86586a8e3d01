package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Ianatiant/ianclaims/internal/sim/land"
)

// FileStore persists registry state as a single zstd-compressed document:
// one JSON header line followed by a gob body. Writes go to a temp file in
// the same directory and are renamed into place, so a crash mid-write never
// leaves truncated state behind.
type FileStore struct {
	path string
}

type Header struct {
	Version int `json:"version"`
	Claims  int `json:"claims"`
	Sales   int `json:"sales"`
}

const formatVersion = 1

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) SaveState(st land.StateV1) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".claims-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := writeState(tmp, st); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func writeState(f *os.File, st land.StateV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(Header{Version: formatVersion, Claims: len(st.Claims), Sales: len(st.Sales)})
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&st); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// Load reads persisted state. ok is false when no document exists yet.
func (s *FileStore) Load() (st land.StateV1, ok bool, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, false, nil
		}
		return st, false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return st, false, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is informational; the gob body is authoritative.
	if _, err := br.ReadBytes('\n'); err != nil {
		return st, false, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&st); err != nil {
		return st, false, fmt.Errorf("gob decode: %w", err)
	}
	return st, true, nil
}
