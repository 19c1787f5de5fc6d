// shared/redis/constants.go
package redis

import "errors"

const (
	// StatusSnapshotKeyPrefix holds the latest status snapshot of one coordinator instance: coordinator:status:{serviceID}
	StatusSnapshotKeyPrefix = "coordinator:status:{%s}"
	// StatusChannel carries every published status snapshot.
	StatusChannel = "coordinator:status"
	// OperationEventsChannel carries operation lifecycle events (deployed, allocated, released, completed).
	OperationEventsChannel = "coordinator:operations"
)

// ErrRedisKeyNotFound is a custom error for when a Redis key is not found.
var ErrRedisKeyNotFound = errors.New("redis key not found")
