// Package report downloads server-generated reports and saves them as
// files.
//
// A [Downloader] POSTs a [DownloadRequest] to the report endpoint and runs
// the response through the [github.com/adamwoolhether/reportfetch/client/download]
// pipeline:
//
//	requesting → receiving → (decoding) → (validating) → saving → completed
//
// ZIP responses that arrive as base64 text are decoded, and every ZIP
// response has its signature checked. Everything else, including
// application/octet-stream, is saved as received.
//
//	c, _ := client.Build(client.WithUserAgent("reportfetch/1.0"))
//	u, _ := client.Endpoint("http://localhost:9191/apireport", "/report-download")
//	d, _ := report.New(c, u,
//		report.WithTokenSource(report.StaticToken(token)),
//		report.WithMaterializer(download.FileMaterializer{Dir: "reports"}),
//	)
//	artifact, err := d.Download(ctx, report.DownloadRequest{
//		RequestID:  "r1",
//		ReportType: report.TypeSummary,
//		Part:       1,
//		FileName:   "report",
//	}, nil)
//	if err != nil {
//		fmt.Println(report.Message(err))
//	}
//
// Failures are *[Error] values whose Kind matches a sentinel such as
// [ErrServer] or [ErrCancelled] with errors.Is.
package report
