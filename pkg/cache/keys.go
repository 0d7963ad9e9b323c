package cache

import "fmt"

// SportsKey is the cache key for the provider's sports catalogue.
func SportsKey(allSports bool) string {
	if allSports {
		return "sports:all"
	}
	return "sports:active"
}

// OddsKey is the cache key for one sport's odds snapshot. Regions and
// markets are part of the key because they change the response body.
func OddsKey(sportKey, regions, markets string) string {
	return fmt.Sprintf("odds:%s:%s:%s", sportKey, regions, markets)
}

// GamesKey is the cache key for one sport's upcoming game list.
func GamesKey(sportKey string) string {
	return fmt.Sprintf("games:%s", sportKey)
}

// ScanLockKey guards against overlapping scan passes.
func ScanLockKey() string {
	return "scan:lock"
}
