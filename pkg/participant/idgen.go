package participant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/google/uuid"
)

// DefaultMakePrepareID returns a participant-unique prepared-transaction
// name of the form "fx_<uuid>_<serverid>_<userid>", well under the
// 200-byte cap, for drivers that don't supply their own PrepareIDer.
func DefaultMakePrepareID(serverID types.ServerID, userID types.UserID) (string, error) {
	id := fmt.Sprintf("fx_%s_%d_%d", uuid.NewString(), serverID, userID)
	if len(id) > 200 {
		return "", fmt.Errorf("participant: generated id length %d exceeds 200 bytes", len(id))
	}
	return id, nil
}

// RandomSuffix returns a short random hex suffix, used by drivers that
// need a cheaper unique fragment than a full UUID (e.g. test drivers
// exercising many prepares).
func RandomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("participant: read random suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
