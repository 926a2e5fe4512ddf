package layoutfile

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Header is written as a plain JSON line ahead of the gob body so tools can
// identify a file without decoding it.
type Header struct {
	Version   int    `json:"version"`
	WorldSeed int64  `json:"world_seed"`
	Radius    int    `json:"radius"`
	Chunks    int    `json:"chunks"`
	CreatedAt string `json:"created_at,omitempty"`
}

type FileV1 struct {
	Header Header    `json:"header"`
	Chunks []ChunkV1 `json:"chunks"`
}

type ChunkV1 struct {
	Q         int      `json:"q"`
	R         int      `json:"r"`
	Seed      int64    `json:"seed"`
	Tiles     []byte   `json:"tiles"`
	Entries   [6][]int `json:"entries"`
	Shortfall int      `json:"shortfall,omitempty"`
	Digest    string   `json:"digest"`
}

func Write(path string, file FileV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	file.Header.Version = Version
	file.Header.Chunks = len(file.Chunks)
	hb, _ := json.Marshal(file.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&file); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (FileV1, error) {
	var file FileV1
	f, err := os.Open(path)
	if err != nil {
		return file, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return file, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return file, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return file, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return file, fmt.Errorf("unsupported layout file version %d", h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&file); err != nil {
		return file, fmt.Errorf("gob decode: %w", err)
	}
	return file, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
