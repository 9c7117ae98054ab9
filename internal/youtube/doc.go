// Package youtube uploads rendered videos to YouTube.
//
// Credentials follow the installed-app OAuth flow: a client secrets file
// downloaded from the Google Cloud console plus a token file written by
// Authorize. Refreshed tokens are saved back to the token file. Uploads are
// resumable and chunked; every insert is public with the made-for-kids
// declaration explicitly false.
package youtube
