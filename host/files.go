package host

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/resource"
)

// File open modes as passed by the guest.
const (
	FSRead int32 = iota
	FSWrite
	FSAppend
	FSAppendSync
)

// Seek origins as passed by the guest.
const (
	FSSeekCur int32 = iota
	FSSeekEnd
	FSSeekSet
)

const maxQPath = 64

// cleanPath validates a guest path. Guests address files relative to the game
// directory; absolute paths and parent references are refused.
func cleanPath(qpath string) (string, error) {
	p := strings.ReplaceAll(qpath, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "..") || strings.Contains(p, ":") {
		return "", errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(qpath).
			Detail("refused path %q", qpath).
			Build()
	}
	return path.Clean(p), nil
}

func (h *Host) fsOpen(_ context.Context, args []uint64) (uint64, error) {
	qpath, err := h.space.ReadString(ptr(args[0]), maxQPath)
	if err != nil {
		return word(-1), err
	}
	name, err := cleanPath(qpath)
	if err != nil {
		return word(-1), err
	}
	handleAt := ptr(args[1])
	mode := i32(args[2])

	// without a handle pointer the guest only asks for the length
	if handleAt.IsNull() {
		fi, err := h.fs.Stat(name)
		if err != nil {
			return word(-1), nil
		}
		return word(int32(fi.Size())), nil
	}

	var (
		f      afero.File
		length int32
	)
	switch mode {
	case FSRead:
		if f, err = h.fs.Open(name); err == nil {
			length, err = fileLength(f)
		}
	case FSWrite:
		f, err = h.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case FSAppend, FSAppendSync:
		if f, err = h.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			length, err = fileLength(f)
		}
	default:
		return word(-1), errors.Unsupported(errors.PhaseHost, "file mode "+itoa(mode))
	}
	if err != nil {
		_ = h.space.WriteU32(handleAt, 0)
		if os.IsNotExist(err) {
			return word(-1), nil
		}
		return word(-1), errors.Wrap(errors.PhaseHost, errors.KindNotFound, err, "open "+name)
	}

	handle, err := h.files.Insert(resource.KindFile, f)
	if err != nil {
		f.Close()
		_ = h.space.WriteU32(handleAt, 0)
		return word(-1), err
	}
	if err := h.space.WriteU32(handleAt, uint32(handle)); err != nil {
		h.files.Remove(handle)
		return word(-1), err
	}
	return word(length), nil
}

// fileLength returns the size of an open file, closing it on failure.
func fileLength(f afero.File) (int32, error) {
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return int32(fi.Size()), nil
}

func (h *Host) file(handle int32) (afero.File, error) {
	v, ok := h.files.Get(resource.Handle(handle), resource.KindFile)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "file handle", itoa(handle))
	}
	return v.(afero.File), nil
}

func (h *Host) fsRead(_ context.Context, args []uint64) (uint64, error) {
	n := i32(args[1])
	f, err := h.file(i32(args[2]))
	if err != nil || n <= 0 {
		return 0, err
	}
	if err := h.space.Check(ptr(args[0]), uint32(n)); err != nil {
		return 0, err
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "read")
	}
	// the guest buffer is filled completely; unread bytes are zeroed
	clear(buf[got:])
	return 0, h.space.Write(ptr(args[0]), buf)
}

func (h *Host) fsWrite(_ context.Context, args []uint64) (uint64, error) {
	n := i32(args[1])
	f, err := h.file(i32(args[2]))
	if err != nil || n <= 0 {
		return 0, err
	}
	data, err := h.space.Read(ptr(args[0]), uint32(n))
	if err != nil {
		return 0, err
	}
	if _, err := f.Write(data); err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "write")
	}
	return 0, nil
}

func (h *Host) fsClose(_ context.Context, args []uint64) (uint64, error) {
	if _, ok := h.files.Remove(resource.Handle(i32(args[0]))); !ok {
		return 0, errors.NotFound(errors.PhaseHost, "file handle", itoa(i32(args[0])))
	}
	return 0, nil
}

func (h *Host) fsSeek(_ context.Context, args []uint64) (uint64, error) {
	f, err := h.file(i32(args[0]))
	if err != nil {
		return word(-1), err
	}
	var whence int
	switch i32(args[2]) {
	case FSSeekCur:
		whence = io.SeekCurrent
	case FSSeekEnd:
		whence = io.SeekEnd
	case FSSeekSet:
		whence = io.SeekStart
	default:
		return word(-1), errors.InvalidInput(errors.PhaseHost, "unknown seek origin")
	}
	if _, err := f.Seek(int64(i32(args[1])), whence); err != nil {
		return word(-1), errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "seek")
	}
	return 0, nil
}
