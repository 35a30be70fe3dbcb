// Package ui provides the terminal status screen for playpresence.
//
// The screen is a Bubble Tea program with three stacked areas:
//
//   - Header and command bar: presence switch, Discord connection, the
//     current game and the last error
//   - Session panel: the latest app session, what is published and one row
//     per service log reader
//   - Application log: the tail of the JSON log file, reformatted for reading
//
// The model polls state.Store on a tick and never talks to the readers or
// the IPC transport directly. The only mutation it performs is flipping the
// rich presence switch in features.Set; that choice and the theme are saved
// to the preferences file.
//
// # Key Bindings
//
//   - p: Toggle rich presence
//   - j/k, g/G, pgup/pgdown, ctrl+u/d: Scroll the log
//   - Space: Toggle log auto-tail (pause/follow)
//   - T: Cycle theme
//   - h or ?: Help
//   - e or Ctrl+C: Exit
package ui
