// Package agent holds the user-supplied handlers of an agentserver process.
//
// A process registers at most one invoke handler and at most one stream
// handler in a [Registry]. Handlers come in four calling conventions, each a
// named function type:
//
//   - [InvokeFunc]: returns its result directly
//   - [AsyncInvokeFunc]: delivers its result on a channel
//   - [StreamFunc]: returns a pull sequence of chunks
//   - [ChannelStreamFunc]: sends chunks from a producer goroutine
//
// [Resolve] and [Chunks] hide the calling convention from callers, so the
// dispatcher treats every handler the same way. [Normalize] converts handler
// results and stream chunks to plain mappings.
package agent
