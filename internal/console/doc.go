// Package console assembles the client-side stack shared by coven-console and coven-chat.
package console
