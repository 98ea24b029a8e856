package persistence

import (
	"encoding/json"
	"os"

	"github.com/klauspost/compress/zstd"
)

// writeRawHeader writes f without normalising the header version.
func writeRawHeader(path string, f SnapshotFile) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	enc, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	hb, _ := json.Marshal(f.Header)
	body, _ := json.Marshal(f.Vessels)
	if _, err := enc.Write(append(append(hb, '\n'), body...)); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
