package stream

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ExtractLimit throttles bytes written to disk during extraction. It is
// configured by bootstrap.InitStreamLimit; a nil limiter means unlimited.
var ExtractLimit *rate.Limiter

type RateLimitReader struct {
	io.Reader
	Limiter *rate.Limiter
	Ctx     context.Context
}

func (r RateLimitReader) Read(p []byte) (n int, err error) {
	if r.Limiter != nil && r.Limiter.Burst() > 0 && len(p) > r.Limiter.Burst() {
		p = p[:r.Limiter.Burst()]
	}
	n, err = r.Reader.Read(p)
	if err != nil {
		return
	}
	if r.Limiter != nil {
		if r.Ctx == nil {
			r.Ctx = context.Background()
		}
		err = r.Limiter.WaitN(r.Ctx, n)
	}
	return
}

type RateLimitWriter struct {
	io.Writer
	Limiter *rate.Limiter
	Ctx     context.Context
}

func (w RateLimitWriter) Write(p []byte) (n int, err error) {
	if w.Limiter == nil || w.Limiter.Limit() == rate.Inf {
		return w.Writer.Write(p)
	}
	if w.Ctx == nil {
		w.Ctx = context.Background()
	}
	// WaitN fails for more than one burst
	chunk := w.Limiter.Burst()
	for len(p) > 0 {
		b := p
		if chunk > 0 && len(b) > chunk {
			b = b[:chunk]
		}
		var m int
		m, err = w.Writer.Write(b)
		n += m
		if err != nil {
			return
		}
		if err = w.Limiter.WaitN(w.Ctx, m); err != nil {
			return
		}
		p = p[m:]
	}
	return
}

// LimitedReader wraps r with the extraction limiter, if any.
func LimitedReader(ctx context.Context, r io.Reader) io.Reader {
	if ExtractLimit == nil || ExtractLimit.Limit() == rate.Inf {
		return r
	}
	return RateLimitReader{Reader: r, Limiter: ExtractLimit, Ctx: ctx}
}
