// Package audit implements async dispatching of immutable audit records
// for security-relevant operations.
//
// Records are handed to a bounded channel consumed by a single background
// worker, so the request path never waits on sink latency. Depending on
// configuration a full buffer either drops the record (counted) or blocks
// until space frees up or the caller's context is cancelled. Close drains
// the buffer before returning.
package audit
