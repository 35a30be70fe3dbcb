// Package app is the composition root for playpresence.
//
// # Startup
//
//  1. Load config.toml and apply command-line overrides
//  2. Load preferences (the saved rich presence choice and theme)
//  3. Build the zerolog logger (JSON file, console when headless)
//  4. Build the store lookup client, the detectable-app registry, the
//     presence Handler and the Dispatcher
//  5. Start one logtail.Reader for the release log and one for the
//     developer emulator log; both feed Dispatcher.Handle
//  6. Run readers, dispatcher, handler and status poller in an errgroup
//  7. Run the status screen, or wait for cancellation when headless
//
// # Data Flow
//
//	Service.log ──> Reader ──> Dispatcher ──> Handler ──> Discord IPC
//	                  │            │
//	                  │            └──> state.Store <── poller
//	                  └──────────────────────┘            │
//	                                                       └──> ui
//
// # Shutdown
//
// Quitting the UI or cancelling the context cancels the errgroup. Readers
// finish their in-flight pass, the Handler clears and closes the transport,
// and Run returns the first error any component reported.
//
// # Error Handling
//
// Only configuration and logger setup errors abort startup. Missing log
// files, unreachable Discord and failed store lookups are logged and shown
// in the UI while everything keeps running.
package app
