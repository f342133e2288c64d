package stream

import (
	"context"
	"io"
)

type UpdateProgress func(percentage float64)

type SimpleReaderWithSize struct {
	io.Reader
	Size int64
}

func (r *SimpleReaderWithSize) GetSize() int64 {
	return r.Size
}

// ReaderUpdatingProgress reports the share of Size read so far.
type ReaderUpdatingProgress struct {
	Reader *SimpleReaderWithSize
	UpdateProgress
	offset int64
}

func (r *ReaderUpdatingProgress) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.offset += int64(n)
	if r.UpdateProgress != nil && r.Reader.Size > 0 {
		r.UpdateProgress(float64(r.offset) * 100.0 / float64(r.Reader.Size))
	}
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// CopyWithCtx copies like io.Copy but stops with ctx.Err() once ctx is done.
func CopyWithCtx(ctx context.Context, dst io.Writer, src io.Reader, size int64, up UpdateProgress) (int64, error) {
	var r io.Reader = ctxReader{ctx: ctx, r: src}
	if up != nil {
		r = &ReaderUpdatingProgress{
			Reader:         &SimpleReaderWithSize{Reader: r, Size: size},
			UpdateProgress: up,
		}
	}
	return io.Copy(dst, LimitedReader(ctx, r))
}
