// Package api defines wire-format types and converters for the HTTP status
// API. It translates session, scheduler, and history models into DTOs that
// dashboards and scripts can consume without coupling to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Session counts always include every state so the key set is stable.
package api
