// Package socketserver implements the threadchat broadcast server.
//
// # Architecture
//
//   - Server: owns the authoritative message tree, the id counter and the
//     Hub. One mutex (Server.mu) guards all three, so assigning an id,
//     inserting the message and enqueueing the broadcast happen atomically
//     with respect to other posts and to newly accepted clients.
//   - Hub: the registry of connected sessions.
//   - Session: one per connection. A read loop decodes posts; an outbox actor
//     drains a bounded mailbox of encoded frames onto the socket.
//   - Console: single-key operator commands read from stdin.
//
// # Connection lifecycle
//
//	REPLAYING -> LISTENING -> CLOSED
//
// On accept the full tree is encoded in pre-order and queued as the first
// outbox item before the session is registered, so a client always sees the
// replay before any live broadcast. Enqueueing never blocks: a session whose
// mailbox is full, or whose writer fails, has its connection closed and its
// read loop deregisters it.
//
// Usage
//
//	srv := socketserver.NewServer(cfg)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//	return srv.Wait()
package socketserver
