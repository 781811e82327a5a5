package application

import (
	"fmt"

	"potsync/domain/entities"

	"github.com/google/uuid"
)

var dedupeNamespace = uuid.MustParse("b3f2c1e4-5d6a-4f7b-9c8d-0e1f2a3b4c5d")

// DedupeToken derives the idempotency key of one transfer decision. Retries of
// the same decision produce the same token; any other run, account, kind or
// amount produces a different one.
func DedupeToken(runID, accountType string, kind entities.TransferKind, amount int64) string {
	name := fmt.Sprintf("%s|%s|%s|%d", runID, accountType, kind, amount)
	return uuid.NewSHA1(dedupeNamespace, []byte(name)).String()
}
