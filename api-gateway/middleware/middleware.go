package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gear-rental/shared/auth"
	"gear-rental/shared/config"
	"gear-rental/shared/i18n"
)

// Context keys set by the middleware below.
const (
	KeyLanguage  = "language"
	KeyRequestID = "request_id"
	KeyUserID    = "user_id"
	KeyUserRole  = "user_role"
	KeyUserEmail = "user_email"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(KeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"request_id", c.GetString(KeyRequestID),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.S().Errorw("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			zap.S().Warnw("request", fields...)
		default:
			zap.S().Infow("request", fields...)
		}
	}
}

func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	origins := cfg.Security.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

// limiterIdle is the minimum time a client must be quiet before its limiter
// is dropped.
const limiterIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters keeps one token bucket per client IP and prunes buckets that
// have been idle for longer than idle.
type clientLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(every rate.Limit, burst int, idle time.Duration) *clientLimiters {
	return &clientLimiters{
		visitors:  make(map[string]*visitor),
		every:     every,
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *clientLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.idle {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit allows RateLimitRequests per RateLimitWindow for each client IP.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	requests := cfg.Security.RateLimitRequests
	if requests <= 0 {
		requests = 100
	}
	window := cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	// A bucket idle for a full window has refilled, so dropping it is safe.
	idle := window
	if idle < limiterIdle {
		idle = limiterIdle
	}
	limiters := newClientLimiters(rate.Every(window/time.Duration(requests)), requests, idle)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": i18n.T(c.GetString(KeyLanguage), "error.rate_limited"),
			})
			return
		}

		c.Next()
	}
}

func LanguageDetector(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		language := ""

		if lang := c.Query("lang"); lang != "" && isSupported(cfg, lang) {
			language = lang
		}

		if language == "" {
			for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
				tag := strings.TrimSpace(strings.Split(part, ";")[0])
				base := strings.ToLower(strings.Split(tag, "-")[0])
				if base != "" && isSupported(cfg, base) {
					language = base
					break
				}
			}
		}

		if language == "" {
			language = cfg.I18n.DefaultLanguage
		}

		c.Set(KeyLanguage, language)
		c.Next()
	}
}

func isSupported(cfg *config.Config, lang string) bool {
	for _, supported := range cfg.I18n.SupportedLanguages {
		if supported == lang {
			return true
		}
	}
	return false
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetString(KeyLanguage)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_auth_token",
				"message": i18n.T(lang, "auth.token_missing"),
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": i18n.T(lang, "auth.token_invalid"),
			})
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUserRole, claims.Role)
		c.Set(KeyUserEmail, claims.Email)

		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(KeyUserRole)
		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "insufficient_permissions",
			"message": i18n.T(c.GetString(KeyLanguage), "error.forbidden"),
		})
	}
}

// RequireAdmin admits admin tokens whose email is still on the allow-list.
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	requireRole := RequireRole(auth.RoleAdmin)
	return func(c *gin.Context) {
		if !cfg.IsAdmin(c.GetString(KeyUserEmail)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "insufficient_permissions",
				"message": i18n.T(c.GetString(KeyLanguage), "error.forbidden"),
			})
			return
		}
		requireRole(c)
	}
}
