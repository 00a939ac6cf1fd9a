// Package config maps the coordinator's tunables onto a Config struct, one
// field per GUC, with package-level defaults matching the reference
// configuration table, wired into cmd/fxcoordctl via pflag flags the way
// warren's cmd/warren/main.go registers flags on its root command.
package config

import (
	"fmt"
	"time"

	"github.com/quorumix/fxcoord/pkg/types"
)

// SynchronousCommitMode mirrors the synchronous_commit setting's subset
// relevant to SRW: whether commit waits on a sync standby at all, and at
// which durability mode.
type SynchronousCommitMode string

const (
	SynchronousCommitOff   SynchronousCommitMode = "off"
	SynchronousCommitOn    SynchronousCommitMode = "on"
	SynchronousCommitLocal SynchronousCommitMode = "local"
)

// Config holds every FXM/resolver/SRW tunable.
type Config struct {
	DataDir string

	MaxPreparedForeignXacts int
	MaxForeignXactResolvers int

	ForeignXactResolutionRetryInterval time.Duration
	ForeignXactResolverTimeout         time.Duration

	ForeignTwoPhaseCommit types.TwoPhaseCommitMode
	SynchronousCommit     SynchronousCommitMode
	SynchronousStandbyNames string

	// MaxResolverBackoff caps the exponential backoff a resolver applies
	// when re-enqueuing a waiter after a failed resolve attempt. Not a
	// named GUC in the reference table; a resolver implementation detail
	// left to the implementer.
	MaxResolverBackoff time.Duration
}

// Default returns a Config populated with the reference defaults.
func Default() Config {
	return Config{
		DataDir:                             "./data",
		MaxPreparedForeignXacts:             0,
		MaxForeignXactResolvers:             0,
		ForeignXactResolutionRetryInterval:  60 * time.Second,
		ForeignXactResolverTimeout:          60 * time.Second,
		ForeignTwoPhaseCommit:               types.TwoPhaseCommitDisabled,
		SynchronousCommit:                   SynchronousCommitOn,
		SynchronousStandbyNames:             "",
		MaxResolverBackoff:                  5 * time.Minute,
	}
}

// Validate checks the cross-field constraints the reference table
// specifies (resolver pool capped by the entry pool).
func (c Config) Validate() error {
	if c.MaxForeignXactResolvers > c.MaxPreparedForeignXacts {
		return fmt.Errorf("config: max_foreign_xact_resolvers (%d) exceeds max_prepared_foreign_xacts (%d)",
			c.MaxForeignXactResolvers, c.MaxPreparedForeignXacts)
	}
	return nil
}
