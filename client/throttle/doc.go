// Package throttle bounds how fast report requests leave the process. It
// wraps an [http.RoundTripper] with a token bucket from
// [golang.org/x/time/rate]:
//
//	rt, err := throttle.NewRoundTripper(throttle.Config{RPS: 2, Burst: 4}, slog.Default, http.DefaultTransport)
//
// A request over the limit waits for a token or for its context to end.
// Response bodies are never slowed down, so a long report download holds
// only the one token it started with.
package throttle
