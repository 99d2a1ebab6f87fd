// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ============================================================================
// Rate Limiter
// ============================================================================

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client, with a burst of the
// same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from ip may proceed now.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.get(ip).Allow()
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.evictLocked(now)

	cl, ok := rl.limiters[ip]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute),
		}
		rl.limiters[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// evictLocked drops clients idle for more than ten minutes.
func (rl *RateLimiter) evictLocked(now time.Time) {
	for ip, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > 10*time.Minute {
			delete(rl.limiters, ip)
		}
	}
}

// RateLimitMiddleware returns 429 Too Many Requests once a client exhausts
// its bucket.
func RateLimitMiddleware(rl *RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.perMinute))
		c.Header("X-RateLimit-Window", time.Minute.String())

		if !rl.Allow(ip) {
			logger.Warn("rate limit exceeded", "ip", ip, "limit", rl.perMinute)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// ============================================================================
// Request Logging
// ============================================================================

// LoggingMiddleware logs each request with duration and status.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"ip", c.ClientIP(),
		)
	}
}

// ============================================================================
// Security Headers
// ============================================================================

// SecurityHeadersMiddleware sets headers that keep the form out of frames
// and out of caches. The form may carry an API key.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ============================================================================
// Same-Origin Guard
// ============================================================================

// SameOriginMiddleware rejects requests sent by another site's page. A
// browser marks those with Sec-Fetch-Site or an Origin whose host differs
// from the request's. Requests carrying neither header (curl, scripts) pass.
func SameOriginMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reason := crossSite(c.Request); reason != "" {
			logger.Warn("cross-site request rejected",
				"path", c.Request.URL.Path,
				"origin", c.GetHeader("Origin"),
				"reason", reason,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"ok":    false,
				"error": "cross-site requests are not allowed",
			})
			return
		}
		c.Next()
	}
}

// crossSite returns why r looks cross-site, or "" when it does not.
func crossSite(r *http.Request) string {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return "sec-fetch-site"
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return "origin"
	}
	if !strings.EqualFold(u.Host, r.Host) {
		return "origin"
	}
	return ""
}

// ============================================================================
// Recovery
// ============================================================================

// RecoveryMiddleware catches panics, logs the stack and returns a 500.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"error", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"ok":    false,
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
