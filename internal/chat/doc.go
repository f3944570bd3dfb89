// Package chat drives a conversation with the assistant.
//
// A Session validates each message, rejects double submits, paces sends with
// a token bucket and streams the reply into its transcript. Completed
// exchanges are mirrored to the local transcript store when one is configured.
package chat
