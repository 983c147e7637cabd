package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable by
// creation time; used for account IDs and generated device IDs, where
// correlation matters but unguessability does not.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
