// Package preflight provides readiness checks for the binaries, files, and
// remote services audiotube depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll offline at startup and logs every failure, so a
//     missing cover image is reported before the first user hits it.
//   - The CLI "audiotube preflight" command runs RunAll online and renders
//     the results.
//
// YouTube checks are skipped when uploads are disabled.
package preflight
