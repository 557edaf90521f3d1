// Package client provides the HTTP transport used to request reports,
// built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(time.Hour),
//		client.WithUserAgent("reportfetch/1.0"),
//		client.WithThrottle(2, 4),
//	)
//
// # Streaming Responses
//
// Construct an [Endpoint] and [Request], then hand the response to a
// [StreamFunc] with [Client.Stream]. The body is never buffered by the
// client; the func decides how much of it to read:
//
//	u, err := client.Endpoint("http://localhost:9191/apireport", "/report-download")
//	req, err := client.Request(ctx, u, http.MethodPost, client.WithPayload(body))
//	err = c.Stream(req, func(resp *http.Response) error {
//		src := download.NewStreamSource(ctx, resp.Body, resp.ContentLength, meter, 0)
//		env, err := download.Accumulate(src, resp.Header.Get("Content-Type"), meter)
//		...
//	})
//
// Non-2xx responses are reported as [*UnexpectedStatusError].
//
// For the decode and save stages see the
// [github.com/adamwoolhether/reportfetch/client/download] package.
package client
