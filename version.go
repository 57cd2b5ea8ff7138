// Package parley carries the module's version, stamped at release time.
package parley

// Version is the current release.
var Version = "0.1.0"
