// Package session manages the bearer token coven-console sends to the backend.
//
// The token comes from COVEN_TOKEN when set, otherwise from the local
// store. Claims are decoded without verification to show the signed-in
// user and to drop a stored token once its exp claim has passed. The
// backend remains the authority: a 401 from any call clears the stored
// token through Manager.Clear.
package session
