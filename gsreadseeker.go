package ctlesion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// GSReadSeekCloser decorates a Google Storage object handle with io.Reader,
// io.Seeker and io.Closer. Seeking closes the live range reader; the next Read
// reopens it at the new offset.
type GSReadSeekCloser struct {
	*storage.ObjectHandle
	Context context.Context
	Size    int64

	r   *storage.Reader
	pos int64
}

func (s *GSReadSeekCloser) Read(buf []byte) (int, error) {
	if s.r == nil {
		r, err := s.NewRangeReader(s.Context, s.pos, -1)
		if err != nil {
			return 0, err
		}
		s.r = r
	}

	n, err := s.r.Read(buf)
	s.pos += int64(n)

	return n, err
}

func (s *GSReadSeekCloser) Seek(offset int64, whence int) (int64, error) {
	var next int64

	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = s.Size + offset
	default:
		return s.pos, fmt.Errorf("io.Seeker 'whence' value %d is not implemented", whence)
	}

	if next < 0 {
		return s.pos, fmt.Errorf("seek to negative offset %d", next)
	}

	if next != s.pos && s.r != nil {
		s.r.Close()
		s.r = nil
	}
	s.pos = next

	return s.pos, nil
}

func (s *GSReadSeekCloser) Close() error {
	if s.r == nil {
		return nil
	}
	err := s.r.Close()
	s.r = nil

	return err
}

// IsGoogleStoragePath reports whether path names a gs:// object.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// MaybeOpenSeekerFromGoogleStorage opens path from Google Storage when it is a
// gs:// URL and a client is available, and from the local filesystem
// otherwise. The size of the object is returned alongside the reader.
func MaybeOpenSeekerFromGoogleStorage(ctx context.Context, path string, client *storage.Client) (ReadSeekCloser, int64, error) {
	if client != nil && IsGoogleStoragePath(path) {
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, 0, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}

		handle := client.Bucket(pathParts[0]).Object(pathParts[1])

		attrs, err := handle.Attrs(ctx)
		if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return &GSReadSeekCloser{ObjectHandle: handle, Context: ctx, Size: attrs.Size}, attrs.Size, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, fstat.Size(), nil
}

// StageLocalCopy returns a local filesystem path holding the contents of path.
// Local paths are returned untouched. Google Storage objects are downloaded
// into a temporary file which keeps the original base name (so extensions
// such as .nii.gz survive); the returned cleanup func removes it.
func StageLocalCopy(ctx context.Context, path string, client *storage.Client) (string, func(), error) {
	nop := func() {}

	if client == nil || !IsGoogleStoragePath(path) {
		return path, nop, nil
	}

	src, _, err := MaybeOpenSeekerFromGoogleStorage(ctx, path, client)
	if err != nil {
		return "", nop, err
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "ctlesion-")
	if err != nil {
		return "", nop, pfx.Err(err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	local := filepath.Join(dir, filepath.Base(path))
	dst, err := os.Create(local)
	if err != nil {
		cleanup()
		return "", nop, pfx.Err(err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nop, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	if err := dst.Close(); err != nil {
		cleanup()
		return "", nop, pfx.Err(err)
	}

	return local, cleanup, nil
}
