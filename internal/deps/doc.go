// Package deps checks the external binaries the daemon shells out to.
package deps
