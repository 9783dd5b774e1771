package connection

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/objcache/objcache/config"
)

// Codec applies the configured serialization and compression transforms to
// values on the wire.
type Codec struct {
	serializer  string
	compression string
}

// NewCodec validates the transform choices and returns a codec.
func NewCodec(serializer, compression string) (*Codec, error) {
	switch serializer {
	case config.SerializerJSON:
	default:
		return nil, fmt.Errorf("unsupported serializer %q", serializer)
	}
	switch compression {
	case config.CompressionNone, config.CompressionGzip, config.CompressionBrotli:
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
	return &Codec{serializer: serializer, compression: compression}, nil
}

// Encode serializes then compresses a value.
func (c *Codec) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serializing value: %w", err)
	}
	return c.compress(data)
}

// Decode decompresses then deserializes into dest.
func (c *Codec) Decode(data []byte, dest any) error {
	raw, err := c.decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("deserializing value: %w", err)
	}
	return nil
}

func (c *Codec) compress(data []byte) ([]byte, error) {
	switch c.compression {
	case config.CompressionGzip:
		return compressGzip(data)
	case config.CompressionBrotli:
		return compressBrotli(data)
	default:
		return data, nil
	}
}

func (c *Codec) decompress(data []byte) ([]byte, error) {
	switch c.compression {
	case config.CompressionGzip:
		return decompressGzip(data)
	case config.CompressionBrotli:
		return decompressBrotli(data)
	default:
		return data, nil
	}
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

func compressBrotli(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := brotli.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBrotli(data []byte) ([]byte, error) {
	reader := brotli.NewReader(bytes.NewReader(data))
	return io.ReadAll(reader)
}
