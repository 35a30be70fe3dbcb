// Package config loads the playpresence TOML configuration.
//
// # Resolution
//
// Load reads the path it is given, or ~/.config/playpresence/config.toml
// when the path is empty. A missing file is not an error: every field has a
// default, and empty or non-positive values in the file fall back to that
// default as well. Paths accept a leading tilde.
//
// # Defaults
//
//   - log_path: <LocalAppData>/Google/Play Games/Logs/Service.log
//   - dev_log_path: <LocalAppData>/Google/Play Games Developer Emulator/Logs/Service.log
//   - application_id: 1204167311922167860
//   - log_level: info
//   - log_file: ~/.local/share/playpresence/logs/playpresence.log
//   - file_logging: true
//   - wait_for_file_seconds: 5
//   - directory_poll_seconds: 60
//   - recheck_seconds: 30 (0 disables the periodic recheck)
//   - presence_refresh_seconds: 5
//   - lookup_base_url: https://play.google.com
//   - lookup_cache_size: 256
//   - detectable_url: https://discord.com/api/v9/games/detectable
//
// <LocalAppData> is the LOCALAPPDATA environment variable, or the user cache
// directory on systems without it.
//
// # Example
//
//	log_level = "debug"
//	recheck_seconds = 10
//	dev_log_path = "D:/Emulator/Logs/Service.log"
//
// # Errors
//
// Load fails when the home directory cannot be resolved, when the file
// exists but cannot be read, or when it is not valid TOML.
package config
