// Package dedupe rejects repeated chat submissions.
//
// A Window remembers a key per (session, text) pair for a short TTL so that
// a double-pressed Enter or a retried command does not send the same message
// twice. Keys are released again when a send fails before reaching the server.
package dedupe
