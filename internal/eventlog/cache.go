package eventlog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// RowCache persists query results between runs.
type RowCache interface {
	// LoadCachedRows returns the rows stored under key. ok is false when
	// nothing is cached.
	LoadCachedRows(key string) (rows []IssueHistory, ok bool, err error)
	// StoreCachedRows replaces the rows stored under key.
	StoreCachedRows(key string, rows []IssueHistory) error
}

// Compression selects how cache files are compressed.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses "none", "lz4" or "zstd". Empty selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown cache compression %q", name)
	}
}

var cacheMagic = []byte("FCR1")

// ErrCorruptCache is returned for cache files that cannot be decoded.
var ErrCorruptCache = errors.New("corrupt row cache")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keep offsets and sub-second precision of change dates.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("eventlog: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("eventlog: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("eventlog: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("eventlog: zstd decoder initialization failed: " + err.Error())
	}
}

// FileCache is a RowCache keeping one compressed CBOR file per key.
//
// File layout: magic, one compression byte, the uncompressed length as a
// uvarint, then the payload.
type FileCache struct {
	dir         string
	compression Compression
}

// NewFileCache stores cache files in dir, creating it when needed.
func NewFileCache(dir string, compression Compression) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir, compression: compression}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".rows")
}

// LoadCachedRows implements RowCache.
func (c *FileCache) LoadCachedRows(key string) ([]IssueHistory, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	payload, err := unpack(data)
	if err != nil {
		return nil, false, err
	}
	var rows []IssueHistory
	if err := decMode.Unmarshal(payload, &rows); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}

	log.Info().Str("key", key).Int("count", len(rows)).Msg("Loaded issues from cache")
	return rows, true, nil
}

// StoreCachedRows implements RowCache. The file is replaced atomically.
func (c *FileCache) StoreCachedRows(key string, rows []IssueHistory) error {
	payload, err := encMode.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	data, err := pack(payload, c.compression)
	if err != nil {
		return err
	}

	path := c.path(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("key", key).Int("count", len(rows)).Str("compression", c.compression.String()).Msg("Issues saved to cache")
	return nil
}

func pack(payload []byte, compression Compression) ([]byte, error) {
	var body []byte
	switch compression {
	case CompressionNone:
		body = payload
	case CompressionZstd:
		body = zstdEncoder.EncodeAll(payload, nil)
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible input.
			compression, body = CompressionNone, payload
		} else {
			body = dst[:n]
		}
	default:
		return nil, fmt.Errorf("unsupported compression: %d", compression)
	}

	var buf bytes.Buffer
	buf.Write(cacheMagic)
	buf.WriteByte(byte(compression))
	buf.Write(binary.AppendUvarint(nil, uint64(len(payload))))
	buf.Write(body)
	return buf.Bytes(), nil
}

func unpack(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, cacheMagic) || len(data) < len(cacheMagic)+1 {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptCache)
	}
	data = data[len(cacheMagic):]
	compression := Compression(data[0])
	size, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length", ErrCorruptCache)
	}
	body := data[1+n:]

	switch compression {
	case CompressionNone:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("%w: size %d does not match expected %d", ErrCorruptCache, len(body), size)
		}
		return body, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptCache, err)
		}
		if uint64(len(out)) != size {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrCorruptCache, len(out), size)
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		read, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptCache, err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrCorruptCache, read, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorruptCache, compression)
	}
}

// CacheKey derives a stable cache key from the parts that define a query.
func CacheKey(parts ...string) string {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}
