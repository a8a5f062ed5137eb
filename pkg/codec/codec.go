// Package codec JSON + zstd для хранения результатов спинов.
package codec

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
)

func coders() (*zstd.Encoder, *zstd.Decoder, error) {
	encOnce.Do(func() {
		enc, initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if initErr != nil {
			return
		}
		dec, initErr = zstd.NewReader(nil)
	})
	return enc, dec, initErr
}

// Marshal JSON, сжатый zstd
func Marshal(v any) ([]byte, error) {
	e, _, err := coders()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Unmarshal обратное к Marshal
func Unmarshal(data []byte, v any) error {
	_, d, err := coders()
	if err != nil {
		return err
	}
	raw, err := d.DecodeAll(data, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
