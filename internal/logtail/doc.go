// Package logtail follows Play Games service logs and turns them into
// session events.
//
// # Overview
//
// A Reader owns one log file. It waits for the file to appear, catches up on
// everything already written, then watches for appended bytes and rotation.
// Catch-up publishes only the newest record, and only while that session is
// still live. After that every complete block of lines is parsed with the
// session package and handed to the configured Handler as an Event.
//
// # Blocks
//
// The service writes one record across several lines. Lines are grouped into
// blocks that start at the dialect's trigger line. A trailing partial block
// is left for the next pass. A block interrupted by the next trigger is
// discarded.
//
// # Rotation
//
// The service truncates or replaces its log on restart. The Reader compares
// the file identity and size on every wake-up; a smaller or different file
// resets the offset to zero and starts a fresh catch-up pass.
//
// # Watching
//
// Passes are driven by a file watch on the log directory, plus an optional
// periodic recheck. When the directory appears late, the watch comes up
// after catch-up and schedules a pass for anything written in between. A
// watch that cannot be established is recorded in Status and retried on the
// recheck cadence; reading continues on that cadence meanwhile.
//
// # Tail
//
// Tail reads the last N lines of any text file with a ring buffer so that
// memory stays O(maxLines) regardless of file size. The UI uses it for the
// application log pane. A missing file yields no lines and no error.
package logtail
