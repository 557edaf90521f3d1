package main

import (
	"encoding/json"
	"net/http"

	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/report"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func progressAt(stage string, loaded int64, pct int) report.Progress {
	return report.Progress{
		Loaded:     loaded,
		Total:      10,
		Percentage: pct,
		Stage:      download.Stage(stage),
	}
}
