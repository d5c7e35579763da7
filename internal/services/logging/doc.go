// Package logging builds the slog handler stack from configuration and can
// emit logs to multiple sinks:
//
//   - Console (human-friendly pretty output)
//   - File (JSON)
//   - The active chat (via kit.Sender) with rate limiting and a minimum
//     level, for concise operator visibility inside the conversation
//
// The chat sink should be configured with a min_level to avoid noise; a
// failing trigger must never flood the conversation it runs in.
package logging
