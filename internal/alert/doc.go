// Package alert escalates risky visits to human operators.
//
// A Dispatcher holds the channels that were fully configured at startup and
// a minimum risk level. Visits below the minimum contact nobody. Visits at
// or above it are sent to every channel exactly once; a channel failure is
// reported in the returned results and never raised to the caller.
//
// Two channels are provided: a Slack incoming webhook and SMTP email with
// STARTTLS. Both render the same channel-agnostic Message built by
// BuildMessage.
package alert
