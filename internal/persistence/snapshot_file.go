// Package persistence stores vessel snapshots as zstd-compressed JSON
// files with a SQLite index over them.
package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/vessel-systems/model"
)

// FileVersion is the snapshot file format written by WriteSnapshotFile.
const FileVersion = 1

// ErrUnsupportedVersion is returned for files written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported snapshot file version")

// Header is the first line of a snapshot file. It can be read without
// decoding the body.
type Header struct {
	Version int       `json:"version"`
	ID      string    `json:"id"`
	Tick    uint64    `json:"tick"`
	SavedAt time.Time `json:"saved_at"`
	Vessels int       `json:"vessels"`
	Label   string    `json:"label,omitempty"`
}

// SnapshotFile is the full content of one file.
type SnapshotFile struct {
	Header  Header                 `json:"header"`
	Vessels []model.VesselSnapshot `json:"vessels"`
}

// WriteSnapshotFile writes f to path as a JSON header line followed by
// the JSON body, both inside one zstd stream.
func WriteSnapshotFile(path string, f SnapshotFile) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	f.Header.Version = FileVersion
	f.Header.Vessels = len(f.Vessels)
	hb, err := json.Marshal(f.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	hb = append(hb, '\n')
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(f.Vessels); err != nil {
		enc.Close()
		return fmt.Errorf("encode vessels: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshotFile decodes a file written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (SnapshotFile, error) {
	var f SnapshotFile
	in, err := os.Open(path)
	if err != nil {
		return f, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return f, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return f, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &f.Header); err != nil {
		return f, fmt.Errorf("decode header: %w", err)
	}
	if f.Header.Version > FileVersion {
		return f, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&f.Vessels); err != nil {
		return f, fmt.Errorf("decode vessels: %w", err)
	}
	return f, nil
}
