package httpapi

import (
	"net/http"
	"time"

	"autocare-crm/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CaseLock serializes mutating requests per case across processes. Each
// in-process service already holds a per-case mutex; this extends the
// exclusion to multi-instance deployments. Contention returns 409 rather
// than queueing, so agents see immediately that a colleague is on the
// record.
//
// A nil client disables the middleware (single-instance and test runs).
func CaseLock(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}
		caseID := c.Param("case_id")
		if caseID == "" {
			c.Next()
			return
		}

		key := "lock:case:" + caseID
		token := uuid.NewString()
		ok, err := utils.AcquireRecordLock(c.Request.Context(), rdb, key, token, ttl)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "lock service unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "case is being worked by another agent"})
			return
		}
		defer func() {
			_ = utils.ReleaseRecordLock(c.Request.Context(), rdb, key, token)
		}()

		c.Next()
	}
}
