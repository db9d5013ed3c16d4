// Package protocol is the AP side of the shared-memory control link.
//
// A [Protocol] owns one shared region: it publishes the context info, sends
// requests through the message ring, matches the CP's acknowledgements to
// waiting callers in the interrupt-driven sweep, and runs the host
// suspend/resume handshake over the same ring.
//
// Requests are sent either deferred ([Protocol.SendDeferred], optional
// completion, never blocks) or blocking ([Protocol.SendBlocking], bounded by
// a deadline that depends on the CP execution stage). A blocking request
// that times out breaks the link for good: every outstanding request is
// failed with [message.StatusLinkBroken] and every later send fails fast.
package protocol
