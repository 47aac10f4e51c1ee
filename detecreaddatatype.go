package ctlesion

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType matches the leading bytes of a stream against known
// compression signatures. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(head []byte) DataType {
	for dt, sig := range byteCodeSigs {
		if bytes.HasPrefix(head, sig) {
			return dt
		}
	}

	return DataTypeNoCompression
}

// MaybeDecompress wraps r in the decompressor its signature calls for. The
// stream is peeked, not consumed, so uncompressed input passes through intact.
func MaybeDecompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	// Short files are fine; Peek returns what it has alongside io.EOF.
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch DetectDataType(head) {
	case DataTypeGzip:
		return gzip.NewReader(br)
	case DataTypeZip:
		return io.NopCloser(zipstream.NewReader(br)), nil
	case DataTypeBZip2:
		return io.NopCloser(bzip2.NewReader(br)), nil
	case DataTypeXZ:
		reader, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	case DataTypeZ:
		return zlib.NewReader(br)
	}

	return io.NopCloser(br), nil
}

// ReadAllMaybeCompressed reads a whole local or gs:// file, transparently
// decompressing it.
func ReadAllMaybeCompressed(ctx context.Context, path string, client *storage.Client) ([]byte, error) {
	f, _, err := MaybeOpenSeekerFromGoogleStorage(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rc, err := MaybeDecompress(f)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer rc.Close()

	// Read fully before parsing so i/o errors surface here rather than being
	// swallowed by downstream decoders.
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return data, nil
}
