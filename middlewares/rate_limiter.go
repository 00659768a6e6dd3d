package middlewares

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter memegang satu token bucket per alamat IP.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	r        rate.Limit
	burst    int
	stopped  chan struct{}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(ctx context.Context, r rate.Limit, burst int) *ipLimiter {
	l := &ipLimiter{
		limiters: make(map[string]*entry),
		r:        r,
		burst:    burst,
		stopped:  make(chan struct{}),
	}
	go l.cleanup(ctx)
	return l
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.r, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// cleanup membuang bucket IP yang sudah lama tidak terlihat. Goroutine
// berhenti saat ctx dibatalkan; stopped ditutup supaya pemanggil bisa
// menunggu.
func (l *ipLimiter) cleanup(ctx context.Context) {
	defer close(l.stopped)
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune(10 * time.Minute)
		}
	}
}

func (l *ipLimiter) prune(idleFor time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if time.Since(e.lastSeen) > idleFor {
			delete(l.limiters, ip)
		}
	}
}

// RateLimit membatasi request per IP untuk seluruh API. Goroutine pembersih
// bucket hidup selama ctx.
func RateLimit(ctx context.Context, perSecond float64, burst int) gin.HandlerFunc {
	l := newIPLimiter(ctx, rate.Limit(perSecond), burst)
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  false,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// StrictRateLimit untuk endpoint autentikasi: jauh lebih ketat supaya
// credential stuffing tidak murah.
func StrictRateLimit(ctx context.Context) gin.HandlerFunc {
	return RateLimit(ctx, 0.2, 5) // ~12 percobaan per menit per IP
}
