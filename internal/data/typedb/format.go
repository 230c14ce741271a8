// Package typedb persists analyzed modules to a directory database and
// serves them back through a lazily rehydrating interpreter.
package typedb

import (
	"bytes"
	"encoding/binary"
	"sync"

	"pyintel/internal/core/errors"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

const (
	// FormatVersion is bumped whenever the record layout changes.
	FormatVersion byte = 1

	fileExt      = ".idb"
	baselineName = "_baseline" + fileExt
	trailerSize  = 8
)

var magic = []byte("PYIDB")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	encoders sync.Pool
	decoders sync.Pool
)

func getEncoder() *zstd.Encoder {
	if e := encoders.Get(); e != nil {
		return e.(*zstd.Encoder)
	}
	e, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err) // only returned for invalid options
	}
	return e
}

func getDecoder() *zstd.Decoder {
	if d := decoders.Get(); d != nil {
		return d.(*zstd.Decoder)
	}
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return d
}

// marshalFrame encodes v as magic, version byte, zstd(JSON) body and an
// xxhash64 trailer over everything before it.
func marshalFrame(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "encode record")
	}
	enc := getEncoder()
	defer encoders.Put(enc)

	out := make([]byte, 0, len(magic)+1+len(body)/2+trailerSize)
	out = append(out, magic...)
	out = append(out, FormatVersion)
	out = enc.EncodeAll(body, out)
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(out)), nil
}

// checkFrame validates magic, version and checksum and returns the
// compressed body. Every failure is reported as CORRUPT_MODULE_RECORD.
func checkFrame(data []byte) ([]byte, error) {
	if len(data) < len(magic)+1+trailerSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, errors.New(errors.CodeCorruptModuleRecord, "bad magic")
	}
	if data[len(magic)] != FormatVersion {
		return nil, errors.Newf(errors.CodeCorruptModuleRecord, "unsupported format version %d", data[len(magic)])
	}
	payload := data[:len(data)-trailerSize]
	if binary.LittleEndian.Uint64(data[len(payload):]) != xxhash.Sum64(payload) {
		return nil, errors.New(errors.CodeCorruptModuleRecord, "checksum mismatch")
	}
	return payload[len(magic)+1:], nil
}

func unmarshalFrame(data []byte, v any) error {
	compressed, err := checkFrame(data)
	if err != nil {
		return err
	}
	dec := getDecoder()
	defer decoders.Put(dec)
	body, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeCorruptModuleRecord, "decompress record")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, errors.CodeCorruptModuleRecord, "decode record")
	}
	return nil
}
