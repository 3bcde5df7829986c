package cache

import (
	"fmt"
	"strings"
)

// TokenKey is the resolver cache key for one token
func TokenKey(chain, address string) string {
	return fmt.Sprintf("token:%s:%s", chain, address)
}

// SnapshotKey is the cache key for a wallet's portfolio snapshot
func SnapshotKey(wallet string) string {
	return fmt.Sprintf("portfolio:%s", wallet)
}

// IngestLockKey marks an ingestion run in progress for a wallet and chain
func IngestLockKey(wallet, chain string) string {
	return fmt.Sprintf("ingest:%s:%s:lock", chain, wallet)
}

// StatsKey caches computed transaction statistics
func StatsKey(wallet, chain string) string {
	return fmt.Sprintf("stats:%s:%s", chain, wallet)
}

// WalletPattern matches every per-wallet key of one chain
func WalletPattern(wallet, chain string) string {
	return fmt.Sprintf("*:%s:%s", chain, wallet)
}

// matchPattern supports the glob subset used by callers: '*' wildcards only
func matchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(key, parts[i])
		if idx < 0 {
			return false
		}
		key = key[idx+len(parts[i]):]
	}
	return strings.HasSuffix(key, parts[len(parts)-1])
}
