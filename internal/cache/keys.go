package cache

import "fmt"

const (
	UserKeyPrefix       = "user:%d"
	LivestreamKeyPrefix = "livestream:%d"
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func LivestreamKey(livestreamID uint) string {
	return fmt.Sprintf(LivestreamKeyPrefix, livestreamID)
}
