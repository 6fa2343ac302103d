// Package id generates the identifiers the storage layer needs: a
// deterministic key for a profile's durability-journal entry, and a
// random suffix for the temp file an atomic save writes through.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalNamespace seeds the deterministic UUIDv5 used for journal keys.
var JournalNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// JournalKey returns a deterministic key for profileName's durability
// journal entry. Same profile name always maps to the same key, so the
// journal can be looked up by name alone without a separate index.
func JournalKey(profileName string) string {
	u := uuid.NewSHA1(JournalNamespace, []byte(profileName))
	return fmt.Sprintf("profile_%s", u.String())
}

// TempSuffix returns a short random token suitable for a save's
// temp-file name (e.g. "<ProfileName>-Profile.json.<suffix>.tmp"),
// guaranteeing that two concurrent saves of different profiles never
// collide on the same temp path.
func TempSuffix() string {
	return uuid.NewString()[:8]
}
