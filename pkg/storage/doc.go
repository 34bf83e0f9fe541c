/*
Package storage keeps a local audit history of invocations in BoltDB.

The history is optional: it is enabled by setting history_path. Each
invocation is stored as a JSON-encoded types.InvocationRecord, and events
published by the reconciler are appended alongside it.

# Buckets

	invocations     <unix-nanos>/<id> -> InvocationRecord
	invocation_ids  <id>              -> key in invocations
	events          <unix-nanos>/<id> -> events.Event

Keys are zero-padded so BoltDB's byte ordering is chronological, which lets
ListInvocations and ListEvents walk the cursor backwards for newest-first
results.

BoltDB holds an exclusive file lock. Opening a database another process
holds fails after one second instead of hanging.
*/
package storage
