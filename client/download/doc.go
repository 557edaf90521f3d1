// Package download holds the stages of the report download pipeline:
// reading a response body as chunks, accumulating them under a memory
// ceiling, unwrapping base64 payloads, checking archive signatures,
// resolving file extensions and materializing the result.
//
// # Pipeline
//
// A single download threads one [Envelope] through the stages, each stage
// taking ownership from the previous one:
//
//	m, _ := download.NewMeter(resp.ContentLength, download.WithProgress(fn))
//	src := download.NewStreamSource(ctx, resp.Body, resp.ContentLength, m, 0)
//	env, err := download.Accumulate(src, contentType, m)
//	if download.IsZip(contentType) && download.LooksBase64(env.Bytes) {
//		env, err = download.DecodeBase64(ctx, env, m)
//	}
//	saved, err := download.Save(ctx, download.FileMaterializer{Dir: dir},
//		download.EnsureExtension(name, contentType), env, m)
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/reportfetch/report] package, which runs these
// stages behind a state machine and maps failures to error kinds.
package download
