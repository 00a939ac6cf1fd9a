package fxwal

import (
	"fmt"
	"sync"

	"github.com/quorumix/fxcoord/pkg/fxerr"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// WAL is FXM's append-only durable record log. It wraps a raft-boltdb
// BoltStore opened in single-writer mode; every Append advances the log's
// index by exactly one, and that index is returned as an LSN.
type WAL struct {
	mu    sync.Mutex
	store *raftboltdb.BoltStore
	next  uint64
}

// Open opens (creating if necessary) the WAL file at path.
func Open(path string) (*WAL, error) {
	store, err := raftboltdb.NewBoltStore(path)
	if err != nil {
		return nil, fxerr.Wrap(fxerr.WALIO, "open wal store", err)
	}

	last, err := store.LastIndex()
	if err != nil {
		store.Close()
		return nil, fxerr.Wrap(fxerr.WALIO, "read wal last index", err)
	}

	return &WAL{store: store, next: last + 1}, nil
}

// Close closes the underlying log store.
func (w *WAL) Close() error {
	if err := w.store.Close(); err != nil {
		return fxerr.Wrap(fxerr.WALIO, "close wal store", err)
	}
	return nil
}

// AppendInsertPrepare writes an INSERT_PREPARE record and returns the LSN
// extent it occupies. WAL append failure here is fatal to the local commit:
// a participant cannot be considered prepared unless durably recorded.
func (w *WAL) AppendInsertPrepare(r InsertPrepare) (startLSN, endLSN types.LSN, err error) {
	body, err := EncodeInsertPrepare(r)
	if err != nil {
		return 0, 0, fxerr.Wrap(fxerr.WALIO, "encode insert_prepare", err)
	}
	return w.append(RecordInsertPrepare, body)
}

// AppendRemovePrepare writes a REMOVE_PREPARE record and returns the LSN
// extent it occupies.
func (w *WAL) AppendRemovePrepare(r RemovePrepare) (startLSN, endLSN types.LSN, err error) {
	return w.append(RecordRemovePrepare, EncodeRemovePrepare(r))
}

func (w *WAL) append(kind RecordType, body []byte) (types.LSN, types.LSN, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WALAppendDuration)

	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.next
	entry := &raft.Log{
		Index: idx,
		Type:  raft.LogCommand,
		Data:  append([]byte{byte(kind)}, body...),
	}
	if err := w.store.StoreLog(entry); err != nil {
		return 0, 0, fxerr.Wrap(fxerr.WALIO, "store wal entry", err)
	}
	w.next = idx + 1

	lsn := types.LSN(idx)
	log.WithComponent("fxwal").Debug().Uint64("lsn", uint64(lsn)).Msg("wal record appended")
	return lsn, lsn, nil
}

// Replay invokes onInsert/onRemove for every record from the given LSN
// (exclusive) through the end of the log, in index order, used by FXM's
// recovery pass.
func (w *WAL) Replay(from types.LSN, onInsert func(types.LSN, InsertPrepare) error, onRemove func(types.LSN, RemovePrepare) error) error {
	w.mu.Lock()
	first, err := w.store.FirstIndex()
	if err != nil {
		w.mu.Unlock()
		return fxerr.Wrap(fxerr.WALIO, "read wal first index", err)
	}
	last, err := w.store.LastIndex()
	w.mu.Unlock()
	if err != nil {
		return fxerr.Wrap(fxerr.WALIO, "read wal last index", err)
	}

	start := uint64(from) + 1
	if start < first {
		start = first
	}

	var entry raft.Log
	for idx := start; idx <= last; idx++ {
		w.mu.Lock()
		err := w.store.GetLog(idx, &entry)
		w.mu.Unlock()
		if err != nil {
			return fxerr.Wrap(fxerr.WALIO, fmt.Sprintf("read wal entry %d", idx), err)
		}
		if len(entry.Data) == 0 {
			continue
		}
		lsn := types.LSN(idx)
		kind := RecordType(entry.Data[0])
		body := entry.Data[1:]
		switch kind {
		case RecordInsertPrepare:
			rec, err := DecodeInsertPrepare(body)
			if err != nil {
				return fxerr.Wrap(fxerr.WALIO, "decode insert_prepare", err)
			}
			if err := onInsert(lsn, rec); err != nil {
				return err
			}
		case RecordRemovePrepare:
			rec, err := DecodeRemovePrepare(body)
			if err != nil {
				return fxerr.Wrap(fxerr.WALIO, "decode remove_prepare", err)
			}
			if err := onRemove(lsn, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// LastLSN returns the LSN of the most recently appended record, or 0 if the
// log is empty.
func (w *WAL) LastLSN() (types.LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, err := w.store.LastIndex()
	if err != nil {
		return 0, fxerr.Wrap(fxerr.WALIO, "read wal last index", err)
	}
	return types.LSN(last), nil
}
