package resolver

import (
	"sync"
	"time"

	"github.com/quorumix/fxcoord/pkg/types"
)

// slot is one entry in the resolver-slot table, the fixed-capacity pool of
// background workers a Launcher may have running at once
// (max_foreign_xact_resolvers).
type slot struct {
	mu sync.Mutex

	pid              int
	dbid             types.DatabaseID
	inUse            bool
	lastResolvedTime time.Time
	cancel           func()
}

func (s *slot) info() types.ResolverSlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ResolverSlotInfo{
		PID:              s.pid,
		DBID:             s.dbid,
		InUse:            s.inUse,
		LastResolvedTime: s.lastResolvedTime,
	}
}
