/*
Package log provides structured logging for fxcoord using zerolog.

The package wraps a single global zerolog.Logger, initialized once via
Init(), with helper constructors for the context loggers FXM, the resolver,
and SRW attach to every log line: component, database id, local xid, server
id, and sync-rep mode.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	resolverLog := log.WithComponent("resolver").With().Uint32("dbid", uint32(dbid)).Logger()
	resolverLog.Info().Msg("resolver worker started")

	xactLog := log.WithXid(uint64(xid))
	xactLog.Warn().Err(err).Msg("resolve failed, entry remains prepared")

# Levels

Debug is for per-entry tracing during development; Info covers lifecycle
events (resolver start/stop, entry prepared/removed, waiter released); Warn
covers retryable participant failures (driver transient errors, SRW
cancellation); Error and Fatal are reserved for conditions fatal to the
local commit (WAL I/O failure, state file corruption).

Never log secret participant credentials or a driver's connection string;
only the ids (dbid/serverid/userid/umid) that identify a participant.
*/
package log
