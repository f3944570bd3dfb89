// Package render turns assistant markdown into terminal output and HTML exports.
package render
