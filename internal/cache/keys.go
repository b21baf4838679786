package cache

import "fmt"

func HistoryKey(profileKey string) string {
	return fmt.Sprintf("history:%s", profileKey)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
