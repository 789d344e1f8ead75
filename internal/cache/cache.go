// File: internal/cache/cache.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Default bounds for the two bounded backends.
const (
	DefaultDiskMaxBytes  = 500 * 1024 * 1024
	DefaultMemoryEntries = 100
	DefaultTTL           = 24 * time.Hour
)

// Key builds the content-addressed cache key for one decision point. Two
// requests share a key iff the model would see identical input: same build,
// same optimized tree, same formatted context.
func Key(buildVersion, treeText, contextText string) string {
	return fmt.Sprintf("%s-uitree-%s-context-%s", buildVersion, digest(treeText), digest(contextText))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
