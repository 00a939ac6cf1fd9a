package fxm

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/fxwal"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/participant"
	"github.com/quorumix/fxcoord/pkg/types"
)

// participantRef is one foreign server a local transaction has touched.
type participantRef struct {
	serverID  types.ServerID
	userID    types.UserID
	mappingID types.MappingID
	driver    string
	modified  bool
}

// Session tracks one local transaction's registered participants from
// first foreign access through commit or rollback. A backend creates a
// Session at the start of the first statement that touches a foreign
// server and discards it at transaction end.
type Session struct {
	mu sync.Mutex

	Xid      types.Xid
	DBID     types.DatabaseID
	BackendID types.BackendID

	localModified bool
	participants  []participantRef
	needs2PC      bool
}

// BeginSession starts tracking a new local transaction.
func (m *Manager) BeginSession(xid types.Xid, dbid types.DatabaseID, backend types.BackendID) *Session {
	return &Session{Xid: xid, DBID: dbid, BackendID: backend}
}

// RegisterParticipant records that the session has touched a foreign
// server through driver, registering via makePrepareID's driver or a
// caller-supplied mappingID. Repeated registration of the same
// (serverID,userID) is idempotent; a later call with modified=true upgrades
// a read-only registration.
func (s *Session) RegisterParticipant(serverID types.ServerID, userID types.UserID, mappingID types.MappingID, driver string, modified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.participants {
		p := &s.participants[i]
		if p.serverID == serverID && p.userID == userID {
			if modified {
				p.modified = true
			}
			return
		}
	}
	s.participants = append(s.participants, participantRef{
		serverID: serverID, userID: userID, mappingID: mappingID, driver: driver, modified: modified,
	})
}

// SetLocalModified records whether the session's local database work
// wrote anything, the other half of the "how many writers" count that
// decides whether 2PC is needed at all.
func (s *Session) SetLocalModified(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localModified = v
}

func (s *Session) modifyingParticipantsLocked() []participantRef {
	var out []participantRef
	for _, p := range s.participants {
		if p.modified {
			out = append(out, p)
		}
	}
	return out
}

// PreCommit decides whether the session needs two-phase commit: at least
// two modifying participants, or one modifying participant plus local
// writes. In REQUIRED mode every modifying participant must be
// prepare-capable or the call fails with E_2PC_UNSUPPORTED; in DISABLED
// mode needing 2PC at all is itself a failure (E_2PC_NOT_ALLOWED); PREFER
// accepts a mix, falling back to one-phase for non-prepare-capable
// participants in AtEOXact.
func (m *Manager) PreCommit(s *Session, mode types.TwoPhaseCommitMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	modifying := s.modifyingParticipantsLocked()
	s.needs2PC = len(modifying) >= 2 || (s.localModified && len(modifying) >= 1)
	if !s.needs2PC {
		metrics.PreCommitTotal.WithLabelValues("local_only").Inc()
		return nil
	}

	switch mode {
	case types.TwoPhaseCommitDisabled:
		metrics.PreCommitTotal.WithLabelValues("rejected").Inc()
		return fxerr.New(fxerr.TwoPhaseCommitNotAllowed,
			"transaction touched multiple writable participants but foreign_twophase_commit is disabled")
	case types.TwoPhaseCommitRequired:
		for _, p := range modifying {
			drv, err := m.reg.Lookup(p.driver)
			if err != nil {
				metrics.PreCommitTotal.WithLabelValues("rejected").Inc()
				return err
			}
			if !participant.IsPrepareCapable(drv) {
				metrics.PreCommitTotal.WithLabelValues("rejected").Inc()
				return fxerr.New(fxerr.TwoPhaseCommitUnsupported,
					fmt.Sprintf("participant server=%d user=%d driver %q is not prepare-capable", p.serverID, p.userID, p.driver))
			}
		}
		metrics.PreCommitTotal.WithLabelValues("two_phase").Inc()
		return nil
	case types.TwoPhaseCommitPrefer:
		metrics.PreCommitTotal.WithLabelValues("two_phase").Inc()
		return nil
	default:
		return fmt.Errorf("fxm: unknown foreign_twophase_commit mode %q", mode)
	}
}

// PrepareFdwXactParticipants runs the explicit PREPARE TRANSACTION path:
// every modifying participant is prepared and spilled to its state file,
// entirely independent of the session's eventual commit/abort decision; a
// modifying participant whose driver is not prepare-capable fails the call
// with TwoPhaseCommitUnsupported. A failure part way through aborts any
// participant already prepared (a resolve with commit=false through
// FinalizeEntry) before returning the error, since an explicit PREPARE
// TRANSACTION is all-or-nothing.
func (m *Manager) PrepareFdwXactParticipants(s *Session) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PrepareDuration)

	s.mu.Lock()
	modifying := s.modifyingParticipantsLocked()
	s.mu.Unlock()

	var prepared []*FdwXactEntry
	for _, p := range modifying {
		drv, err := m.reg.Lookup(p.driver)
		if err != nil {
			m.abortPrepared(s, prepared)
			return err
		}
		if !participant.IsPrepareCapable(drv) {
			m.abortPrepared(s, prepared)
			return fxerr.New(fxerr.TwoPhaseCommitUnsupported,
				fmt.Sprintf("participant server=%d user=%d driver %q is not prepare-capable", p.serverID, p.userID, p.driver))
		}
		entry, err := m.prepareOne(s, p, drv)
		if err != nil {
			m.abortPrepared(s, prepared)
			return err
		}
		prepared = append(prepared, entry)
	}
	return nil
}

func (m *Manager) abortPrepared(s *Session, entries []*FdwXactEntry) {
	for _, e := range entries {
		e.MarkAborting()
		if !e.TryClaim() {
			continue
		}
		if err := m.FinalizeEntry(e, false); err != nil {
			log.Warn("fxm: abort of partially prepared participant failed, left in-doubt: " + err.Error())
		}
	}
}

func (m *Manager) prepareOne(s *Session, p participantRef, drv participant.Driver) (*FdwXactEntry, error) {
	preparer := drv.(participant.Preparer)

	id, err := makePrepareID(drv, p.serverID, p.userID)
	if err != nil {
		return nil, err
	}

	key := types.FdwXactKey{DBID: s.DBID, ServerID: p.serverID, UserID: p.userID}
	m.mu.Lock()
	entry, err := m.allocateLocked(key, s.Xid, p.mappingID, p.driver)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	entry.FdwXactID = id

	if err := preparer.Prepare(s.Xid, p.serverID, p.userID, id); err != nil {
		m.mu.Lock()
		m.destroyLocked(key)
		m.mu.Unlock()
		return nil, err
	}

	startLSN, endLSN, err := m.wal.AppendInsertPrepare(fxwal.InsertPrepare{
		DBID:      s.DBID,
		ServerID:  p.serverID,
		UserID:    p.userID,
		MappingID: p.mappingID,
		LocalXid:  s.Xid,
		FdwXactID: id,
	})
	if err != nil {
		return nil, err
	}
	if err := entry.MarkPrepared(startLSN, endLSN); err != nil {
		return nil, err
	}
	if err := m.spill(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// AtEOXact runs the end-of-transaction path for a session that did not
// call PreCommit (or whose PreCommit determined 2PC was unnecessary):
// every registered participant is committed or rolled back one-phase,
// directly, with no WAL record. If s.needs2PC is set, the modifying
// participants are prepared, spilled, and then immediately resolved in
// the same call, matching the reference implementation's collapsed
// prepare-then-resolve fast path for a transaction that is not suspended
// between phases.
func (m *Manager) AtEOXact(s *Session, commit bool) error {
	s.mu.Lock()
	needs2PC := s.needs2PC
	all := append([]participantRef(nil), s.participants...)
	modifying := s.modifyingParticipantsLocked()
	s.mu.Unlock()

	if !needs2PC {
		var firstErr error
		for _, p := range all {
			drv, err := m.reg.Lookup(p.driver)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if commit {
				err = drv.Commit(s.Xid, p.serverID, p.userID)
			} else {
				err = drv.Rollback(s.Xid, p.serverID, p.userID)
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	var prepared []*FdwXactEntry
	for _, p := range modifying {
		drv, err := m.reg.Lookup(p.driver)
		if err != nil {
			return err
		}
		if !participant.IsPrepareCapable(drv) {
			// PREFER mode tolerates this: commit/rollback one-phase out of
			// band from the 2PC set.
			if commit {
				err = drv.Commit(s.Xid, p.serverID, p.userID)
			} else {
				err = drv.Rollback(s.Xid, p.serverID, p.userID)
			}
			if err != nil {
				log.Warn("fxm: one-phase fallback participant failed: " + err.Error())
			}
			continue
		}
		entry, err := m.prepareOne(s, p, drv)
		if err != nil {
			m.abortPrepared(s, prepared)
			return err
		}
		prepared = append(prepared, entry)
	}

	for _, e := range prepared {
		if commit {
			_ = e.MarkCommitting()
		} else {
			_ = e.MarkAborting()
		}
		if !e.TryClaim() {
			continue
		}
		if err := m.FinalizeEntry(e, commit); err != nil {
			// Left in-doubt; a resolver will retry. The local transaction's
			// own commit/abort decision is already durable, so this is a
			// warning rather than an error returned to the caller.
			log.Warn("fxm: synchronous resolve of prepared participant failed, left in-doubt: " + err.Error())
		}
	}
	return nil
}

func makePrepareID(drv participant.Driver, serverID types.ServerID, userID types.UserID) (string, error) {
	if ider, ok := drv.(participant.PrepareIDer); ok {
		return ider.MakePrepareID(serverID, userID)
	}
	return participant.DefaultMakePrepareID(serverID, userID)
}
