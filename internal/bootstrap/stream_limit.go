package bootstrap

import (
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/stream"
	"golang.org/x/time/rate"
)

func filterNegative(limit int) (rate.Limit, int) {
	if limit < 0 {
		return rate.Inf, 0
	}
	return rate.Limit(limit), limit
}

func initLimiter(limiter **rate.Limiter, limit int) {
	l, burst := filterNegative(limit)
	if *limiter == nil {
		*limiter = rate.NewLimiter(l, burst)
		return
	}
	(*limiter).SetLimit(l)
	(*limiter).SetBurst(burst)
}

// InitStreamLimit applies the configured extraction speed, in bytes per
// second. A negative value means unlimited.
func InitStreamLimit() {
	limit := -1
	if conf.Conf != nil {
		limit = conf.Conf.ExtractRateLimit
	}
	initLimiter(&stream.ExtractLimit, limit)
}
