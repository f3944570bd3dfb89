// Package validate holds the checks the console runs before any request
// leaves the machine. A failure is a *Error whose message is fit for
// display.
package validate
