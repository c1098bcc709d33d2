package persist

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// blobCodec records how a stored content blob is encoded.
type blobCodec int

const (
	blobRaw  blobCodec = 0
	blobZstd blobCodec = 1
)

// Content smaller than this is never compressed.
const compressThreshold = 512

// zstd.Encoder and zstd.Decoder are safe for concurrent use via
// EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("persist: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("persist: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBlob compresses content when that makes it smaller.
func encodeBlob(content []byte) ([]byte, blobCodec) {
	if len(content) < compressThreshold {
		return content, blobRaw
	}
	compressed := zstdEncoder.EncodeAll(content, nil)
	if len(compressed) >= len(content) {
		return content, blobRaw
	}
	return compressed, blobZstd
}

func decodeBlob(blob []byte, codec blobCodec) ([]byte, error) {
	switch codec {
	case blobRaw:
		return blob, nil
	case blobZstd:
		content, err := zstdDecoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if content == nil {
			content = []byte{}
		}
		return content, nil
	default:
		return nil, fmt.Errorf("unknown blob codec %d", codec)
	}
}
