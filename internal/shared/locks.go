package shared

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// ActualsLockKey derives the pg advisory lock key serializing actual-line
// writes for one resource within one period. Two concurrent writes for the
// same (tenant, resource, period) must land on the same key.
func ActualsLockKey(tenantID, resourceID, periodID uuid.UUID) int64 {
	return advisoryKey(fmt.Sprintf("actuals:%s:%s:%s", tenantID, resourceID, periodID))
}

// DashboardCacheKey builds the redis key for a cached reconciliation
// dashboard.
func DashboardCacheKey(tenantID, periodID uuid.UUID) string {
	return fmt.Sprintf("reconcile:dashboard:%s:%s", tenantID, periodID)
}

func advisoryKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
