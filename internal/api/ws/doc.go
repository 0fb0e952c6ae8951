// Package ws binds a remote terminal emulator to a project's session over
// a WebSocket.
//
// Terminal output is streamed to the client as binary frames. Everything
// else is JSON text frames with a "type" field.
//
// Message Types (Client → Server):
//   - input: raw keystrokes in "data", written straight to the shell
//   - resize: new "cols" and "rows"
//   - submit: "text" delivered through the paste protocol, or placed in
//     the outbox unchanged when "raw" is set
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: welcome with the connection id and session info
//   - state: session state transition
//   - status: document sharing status transition for the project
//   - submitted: delivery result of a submit
//   - pong: reply to ping
//   - error: request failed
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, tracker, deliverer, metrics, logger)
//	router.GET("/projects/:project/session/stream", handler.HandleConnection)
package ws
