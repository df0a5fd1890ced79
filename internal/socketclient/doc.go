// Package socketclient is the client side of a threadchat connection.
//
// A Client dials the server (TCP, or WebSocket for ws:// URLs) with a bounded
// number of immediate attempts, then runs a receive loop that decodes event
// frames and hands them to the event callback. When the stream breaks for any
// reason other than Close, the client reconnects with the same bounded retry;
// the server replays its whole tree on every connection, so callers must
// tolerate events they have already seen.
//
// Usage
//
//	client := socketclient.NewClient(socketclient.DefaultConfig("alice", "localhost"))
//	client.SetEventCallback(func(ev wire.Event) { ... })
//	client.SetFatalCallback(func(err error) { ... })
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	client.Start()
//	defer client.Close()
//
//	_ = client.Post(0, "hello")
package socketclient
