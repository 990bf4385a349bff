/*
Package vcache persists rendered view output between requests. An
entry carries the response body byte-for-byte together with the headers
it was produced with, stamped with its view type, save time and TTL so
callers can judge freshness without re-rendering.

Keys are derived from the render identity (the request URI, or a
synthetic view identity for direct renders) plus the view type, and
carry a generation prefix so an entire key format can be retired in one
sweep. Two backends implement the Store interface: FileStore keeps one
meta/body file pair per entry in a flat directory, SQLStore keeps
entries in a single SQLite table for deployments that already carry a
database file.

Cache failures are advisory by contract: callers treat every error from
a Store as a miss and render anyway.
*/
package vcache
