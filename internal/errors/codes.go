// Package errors provides the structured error type shared across every
// component: a fixed Kind taxonomy plus a human message, optional cause,
// and caller-supplied detail/suggestion fields for presentation.
package errors

// Kind classifies an Error into one of the taxonomy's fixed buckets, rather
// than an open-ended numeric code space: every component-level failure in
// this module maps to exactly one of these.
type Kind string

const (
	// KindValidation marks a caller-supplied argument that failed a
	// precondition (e.g. an empty query, a limit <= 0).
	KindValidation Kind = "validation"

	// KindNotFound marks a lookup that found nothing (a root with no cache
	// entry, a repo that doesn't exist at the given path).
	KindNotFound Kind = "not_found"

	// KindIO marks a filesystem or disk failure.
	KindIO Kind = "io"

	// KindParse marks malformed content that could not be decoded (a
	// corrupt cache file, a commit diff that doesn't parse).
	KindParse Kind = "parse"

	// KindTimeout marks an operation that exceeded its deadline (e.g. an
	// embed batch). Filesystem lock waits use KindLockTimeout.
	KindTimeout Kind = "timeout"

	// KindCancelled marks an operation stopped by a caller's cancellation
	// token (cooperative cancellation).
	KindCancelled Kind = "cancelled"

	// KindLockTimeout marks a filesystem lock wait that exceeded
	// FilesystemLockTimeout.
	KindLockTimeout Kind = "lock_timeout"

	// KindBroadcastClosed marks an in-process waiter whose InProgressOp
	// was abandoned (guard finalized) before a real result was broadcast.
	KindBroadcastClosed Kind = "broadcast_closed"
)

// retryableKinds are kinds a caller may reasonably retry without changing
// its input.
var retryableKinds = map[Kind]bool{
	KindTimeout: true,
}
