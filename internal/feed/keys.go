package feed

import "github.com/oklog/ulid/v2"

// NewPushKey returns a ULID string. ULIDs from one process are monotonic, so
// keys sort in creation order within a process and by millisecond across
// processes.
func NewPushKey() string {
	return ulid.Make().String()
}
