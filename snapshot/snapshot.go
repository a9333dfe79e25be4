package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-tracker/store"
)

var dateFormatConcise = "20060102"

// Frame is one archived valuation batch. A day file holds one frame per ETL
// run, each independently compressed and length-prefixed.
type Frame struct {
	Ticker    string               `json:"ticker"`
	AsOfDate  string               `json:"peildatum"`
	WrittenAt time.Time            `json:"written_at"`
	Greeks    []store.OptionGreeks `json:"greeks"`
}

// Archive appends valuation batches to per-day zstd files under Dir.
type Archive struct {
	Dir string
}

func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir}
}

func (a *Archive) pathFor(asOf time.Time) string {
	return filepath.Join(a.Dir, "greeks_"+asOf.Format(dateFormatConcise)+".json.zstd")
}

// Append archives one batch and returns the file it was written to.
func (a *Archive) Append(ticker string, asOf time.Time, greeks []store.OptionGreeks) (string, error) {
	frame := Frame{
		Ticker:    ticker,
		AsOfDate:  asOf.Format("2006-01-02"),
		WrittenAt: time.Now().UTC(),
		Greeks:    greeks,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal frame: %w", err)
	}

	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", err
	}
	path := a.pathFor(asOf)
	if err := appendToFile(path, payload); err != nil {
		return "", fmt.Errorf("snapshot: append %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"file":   path,
		"greeks": len(greeks),
	}).Info("archived valuation batch")
	return path, nil
}

// Read returns every frame archived for the day, in write order.
func (a *Archive) Read(asOf time.Time) ([]Frame, error) {
	b, err := os.ReadFile(a.pathFor(asOf))
	if err != nil {
		return nil, err
	}

	var frames []Frame
	for len(b) > 8 {
		sizeOfPacket := binary.BigEndian.Uint64(b[0:8])
		if sizeOfPacket+8 > uint64(len(b)) {
			return nil, fmt.Errorf("snapshot: truncated frame, need %d bytes have %d", sizeOfPacket+8, len(b))
		}
		packet, err := decompress(b[8 : sizeOfPacket+8])
		if err != nil {
			return nil, err
		}
		b = b[sizeOfPacket+8:]

		var frame Frame
		if err := json.Unmarshal(packet, &frame); err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func compress(input []byte) ([]byte, error) {
	var b bytes.Buffer
	bestLevel := zstd.WithEncoderLevel(zstd.SpeedBestCompression)
	encoder, err := zstd.NewWriter(&b, bestLevel)
	if err != nil {
		return nil, err
	}

	_, err = encoder.Write(input)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	err = encoder.Close()
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decompress(input []byte) ([]byte, error) {
	b := bytes.NewReader(input)
	decoder, err := zstd.NewReader(b)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(decoder)
	if err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

func appendToFile(filename string, data []byte) error {
	compressedData, err := compress(data)
	if err != nil {
		return err
	}

	bytesToSave := make([]byte, 8)
	binary.BigEndian.PutUint64(bytesToSave, uint64(len(compressedData)))
	bytesToSave = append(bytesToSave, compressedData...)

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(bytesToSave)
	if err != nil {
		return err
	}
	return nil
}
