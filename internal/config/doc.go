// Package config loads, normalizes, and validates audiotube configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours the
// environment fallbacks the bot has always used (BOT_TOKEN, BOT_PASSWORD,
// IMAGE_FILE, TEMP_DIR, UPLOAD_TO_YOUTUBE, CLIENT_SECRETS, YT_TOKEN_FILE,
// ARIA2C_PATH, TG_API_ID, TG_API_HASH). The Config type centralizes every knob
// the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
