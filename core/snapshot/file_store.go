package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pyropy/territory/core/constants"
	"github.com/pyropy/territory/core/model"
	"github.com/pyropy/territory/lib/checksum"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// document is the on-disk layout. Checksum covers the exact bytes of Cells.
type document struct {
	SchemaVersion int             `json:"schema_version"`
	Count         int             `json:"count"`
	Checksum      uint32          `json:"checksum"`
	Cells         json.RawMessage `json:"cells"`
}

// FileStore keeps the snapshot in a single file, zstd compressed unless Compress is off.
// Plain JSON files are read as well.
type FileStore struct {
	Path     string
	Compress bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path, Compress: true}
}

func (f *FileStore) Save(_ context.Context, cells []model.Cell) error {
	if cells == nil {
		cells = []model.Cell{}
	}

	payload, err := json.Marshal(cells)
	if err != nil {
		return err
	}

	doc := document{
		SchemaVersion: constants.SNAPSHOT_SCHEMA_VERSION,
		Count:         len(cells),
		Checksum:      checksum.CalculateCheckSum(payload),
		Cells:         payload,
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := f.write(tmp, b); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.Path)
}

func (f *FileStore) write(w io.Writer, b []byte) error {
	if !f.Compress {
		_, err := w.Write(b)
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	if _, err := enc.Write(b); err != nil {
		_ = enc.Close()
		return err
	}

	return enc.Close()
}

func (f *FileStore) Load(_ context.Context) ([]model.Cell, error) {
	raw, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(raw, zstdMagic) {
		raw, err = decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
	}

	return decode(raw)
}

func decompress(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return io.ReadAll(dec)
}

func decode(raw []byte) ([]model.Cell, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if doc.SchemaVersion != constants.SNAPSHOT_SCHEMA_VERSION {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, doc.SchemaVersion, constants.SNAPSHOT_SCHEMA_VERSION)
	}

	if !checksum.Verify(doc.Cells, doc.Checksum) {
		return nil, ErrChecksumMismatch
	}

	var cells []model.Cell
	if err := json.Unmarshal(doc.Cells, &cells); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	if doc.Count != len(cells) {
		return nil, ErrChecksumMismatch
	}

	return cells, nil
}
