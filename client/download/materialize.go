package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Materializer persists a finished payload under name and returns where it
// ended up. Implementations must write env.Bytes exactly and must not retain
// the buffer after returning.
type Materializer interface {
	Materialize(ctx context.Context, name string, env *Envelope) (string, error)
}

// Saved describes a payload that has been materialized.
type Saved struct {
	Location string
	Size     int64
	Checksum string // hex SHA-256 of the bytes written.
}

// Save hands env to mat, then releases the buffer and reports saving as
// complete. env is released whether or not mat succeeds.
func Save(ctx context.Context, mat Materializer, name string, env *Envelope, m *Meter) (Saved, error) {
	defer env.Release()

	if mat == nil {
		return Saved{}, ErrNilMaterializer
	}
	if err := ctx.Err(); err != nil {
		return Saved{}, fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	}

	size := env.Len()
	sum := checksum(env.Bytes)
	m.Stage(StageSaving, 0, size)

	loc, err := mat.Materialize(ctx, name, env)
	if err != nil {
		return Saved{}, fmt.Errorf("materialize %s: %w", name, err)
	}

	env.Release()
	m.Usage(StageSaving, 0)
	m.Stage(StageSaving, size, size)

	return Saved{Location: loc, Size: size, Checksum: sum}, nil
}

// FileMaterializer writes payloads into Dir. Data lands in a temp file in
// the same directory which is renamed into place on success and removed on
// failure. When the rename is refused, the temp file is copied over the
// destination instead.
type FileMaterializer struct {
	Dir    string
	Logger *slog.Logger
}

func (fm FileMaterializer) Materialize(ctx context.Context, name string, env *Envelope) (string, error) {
	logger := fm.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	dir := fm.Dir
	if dir == "" {
		dir = "."
	}
	destPath := filepath.Join(dir, name)

	file, err := os.CreateTemp(dir, ".reportfetch-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if err := os.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to remove temp file", "error", err)
		}
		if !successful {
			logger.Debug("discarded partial file", "path", destPath)
		}
	}()

	if _, err := file.Write(env.Bytes); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := file.Chmod(0o644); err != nil {
		return "", fmt.Errorf("setting file mode: %w", err)
	}
	if err := file.Sync(); err != nil {
		return "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	}

	if err := os.Rename(file.Name(), destPath); err != nil {
		logger.Warn("rename refused, copying into place", "path", destPath, "error", err)
		if err := copyFile(file.Name(), destPath); err != nil {
			return "", fmt.Errorf("copying temp file: %w", err)
		}
	}

	successful = true

	return destPath, nil
}

// copyFile overwrites dst with the contents of src.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
