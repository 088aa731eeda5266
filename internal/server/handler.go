package server

import (
	"time"

	"github.com/petra/petracache/internal/protocol"
	"github.com/petra/petracache/internal/storage"
)

// execute dispatches a fully parsed command to its handler, writing the
// response into resp. QUIT carries no reply of its own; the connection
// loop closes the socket once execute returns.
func execute(s *Server, cmd protocol.Command, resp *protocol.ResponseWriter) {
	start := time.Now()
	defer func() { s.metrics.ObserveCommand(time.Since(start)) }()

	switch cmd.Kind {
	case protocol.KindGet:
		s.metrics.CmdGet.Inc()
		handleGet(s, cmd.Keys, resp)
	case protocol.KindSet:
		s.metrics.CmdSet.Inc()
		handleSet(s, cmd.Key, cmd.Flags, cmd.Exptime, cmd.Data, resp)
	case protocol.KindDelete:
		s.metrics.CmdDelete.Inc()
		handleDelete(s, cmd.Key, resp)
	case protocol.KindVersion:
		resp.WriteVersion()
	case protocol.KindQuit:
		// no reply; connection loop closes the socket
	}
}

// handleGet serves a single-key fast path separately from the batched
// multi-key path, since the overwhelmingly common case is one key and a
// slice-of-one batch call costs an extra allocation for no benefit.
func handleGet(s *Server, keys [][]byte, resp *protocol.ResponseWriter) {
	if len(keys) == 1 {
		value, found, err := s.store.Get(keys[0])
		if err != nil {
			s.metrics.StorageErrors.Inc()
			resp.WriteServerError(err.Error())
			return
		}
		if found {
			s.metrics.GetHits.Inc()
			resp.WriteValue(keys[0], value.Flags, value.Data)
		} else {
			s.metrics.GetMisses.Inc()
		}
		resp.WriteEnd()
		return
	}

	results, err := s.store.MultiGet(keys)
	if err != nil {
		s.metrics.StorageErrors.Inc()
		resp.WriteServerError(err.Error())
		return
	}
	for _, r := range results {
		if r.Found {
			s.metrics.GetHits.Inc()
			resp.WriteValue(r.Key, r.Value.Flags, r.Value.Data)
		} else {
			s.metrics.GetMisses.Inc()
		}
	}
	resp.WriteEnd()
}

func handleSet(s *Server, key []byte, flags uint32, exptime uint64, data []byte, resp *protocol.ResponseWriter) {
	value := storage.NewStoredValue(flags, exptime, data)
	if err := s.store.Set(key, value); err != nil {
		s.metrics.StorageErrors.Inc()
		resp.WriteServerError(err.Error())
		return
	}
	resp.WriteStored()
}

func handleDelete(s *Server, key []byte, resp *protocol.ResponseWriter) {
	existed, err := s.store.Delete(key)
	if err != nil {
		s.metrics.StorageErrors.Inc()
		resp.WriteServerError(err.Error())
		return
	}
	if existed {
		resp.WriteDeleted()
	} else {
		resp.WriteNotFound()
	}
}
