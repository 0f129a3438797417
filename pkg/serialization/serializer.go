// Package serialization encodes run history payloads for persistence:
// a codec (msgpack or JSON) followed by optional compression and AES-GCM
// encryption. Record stores use it to pack parameter snapshots, outputs,
// and logs into a single blob column.
package serialization

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes a value to bytes.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

// Compression selects the compression stage.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	ErrNilCodec           = errors.New("serializer requires a codec")
	ErrInvalidKeySize     = errors.New("encryption key must be 16, 24, or 32 bytes")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")
	ErrUnknownCompression = errors.New("unknown compression type")
)

// Config holds the serializer pipeline settings. An empty EncryptKey
// disables encryption.
type Config struct {
	Codec       Codec
	Compression Compression
	EncryptKey  []byte
}

// Serializer runs the encode -> compress -> encrypt pipeline and its
// inverse. Safe for concurrent use.
type Serializer struct {
	config Config
}

// New validates the configuration and builds a serializer.
func New(config Config) (*Serializer, error) {
	if config.Codec == nil {
		return nil, ErrNilCodec
	}
	switch config.Compression {
	case "", CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, config.Compression)
	}
	switch len(config.EncryptKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(config.EncryptKey))
	}
	return &Serializer{config: config}, nil
}

// Default returns a msgpack+zstd serializer without encryption.
func Default() *Serializer {
	s, err := New(Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd})
	if err != nil {
		panic(err)
	}
	return s
}

// Marshal encodes, compresses, and encrypts v.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if len(s.config.EncryptKey) > 0 {
		data, err = s.encrypt(data)
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
	}
	return data, nil
}

// Unmarshal reverses Marshal into v.
func (s *Serializer) Unmarshal(data []byte, v interface{}) error {
	var err error
	if len(s.config.EncryptKey) > 0 {
		data, err = s.decrypt(data)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
	}
	data, err = s.decompress(data)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := s.config.Codec.Decode(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

func (s *Serializer) encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.config.EncryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// JSONCodec encodes values as JSON. Useful when blobs should stay
// inspectable with database tooling.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (c *JSONCodec) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (c *JSONCodec) Name() string { return "json" }

// MsgPackCodec encodes values as MessagePack, the compact default.
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v interface{}) ([]byte, error) { return msgpack.Marshal(v) }

func (c *MsgPackCodec) Decode(data []byte, v interface{}) error { return msgpack.Unmarshal(data, v) }

func (c *MsgPackCodec) Name() string { return "msgpack" }

// NewJSONCodec creates a JSON codec.
func NewJSONCodec() Codec { return &JSONCodec{} }

// NewMsgPackCodec creates a MessagePack codec.
func NewMsgPackCodec() Codec { return &MsgPackCodec{} }
