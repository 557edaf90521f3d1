package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"gocloud.dev/blob"

	"github.com/adamwoolhether/reportfetch/client/download"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check that saved archives start with a ZIP signature",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bucket",
				Usage: "Read PATHs as keys in this bucket URL instead of local files",
			},
		},
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("verify needs at least one PATH", exitUsage)
	}

	open := openFile
	if u := c.String("bucket"); u != "" {
		bucket, err := blob.OpenBucket(c.Context, u)
		if err != nil {
			return cli.Exit(fmt.Sprintf("opening bucket %s: %v", u, err), exitUsage)
		}
		defer bucket.Close()

		open = func(ctx context.Context, key string) (io.ReadCloser, int64, error) {
			r, err := bucket.NewReader(ctx, key, nil)
			if err != nil {
				return nil, 0, err
			}
			return r, r.Size(), nil
		}
	}

	var bad int
	for _, p := range c.Args().Slice() {
		ok, size, err := verifyOne(c.Context, open, p)
		switch {
		case err != nil:
			bad++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", p, err)
		case !ok:
			bad++
			fmt.Fprintf(c.App.Writer, "%s: not a zip archive (%s)\n", p, humanize.IBytes(uint64(size)))
		default:
			fmt.Fprintf(c.App.Writer, "%s: ok (%s)\n", p, humanize.IBytes(uint64(size)))
		}
	}

	if bad > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed verification", bad, c.NArg()), exitFailure)
	}

	return nil
}

type opener func(ctx context.Context, path string) (io.ReadCloser, int64, error)

func openFile(_ context.Context, path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

func verifyOne(ctx context.Context, open opener, path string) (bool, int64, error) {
	r, size, err := open(ctx, path)
	if err != nil {
		return false, 0, err
	}
	defer r.Close()

	return download.ValidZipReader(r), size, nil
}
