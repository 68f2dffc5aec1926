package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// HashKey builds a stable cache key from its parts.
func HashKey(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum)
}
