// Package stream decodes the backend's chunked chat responses and folds
// them into a transcript.
//
// Each line of a response is one JSON event, either bare or prefixed with
// "data:" as in server-sent events. "data: [DONE]" ends the stream like
// {"done": true}.
//
// An Accumulator holds the user message and an assistant placeholder. The
// placeholder fills as chunk events arrive and is removed again when the
// stream reports an error or completes with no content.
package stream
