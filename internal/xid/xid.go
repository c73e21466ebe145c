package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered identifier such as
// "trx_0193f1c2-...". Ids created on the same till sort by creation time.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + id.String()
}

// HasPrefix reports whether id was generated by New with the given prefix.
func HasPrefix(id string, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
