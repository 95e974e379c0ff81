// Package output owns the image tree: one directory per camera prefix, a
// shared spool area for in-flight captures, and the write-then-rename commit
// that keeps observers from ever seeing a partial image.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// timeFormat is the filename timestamp layout.
const timeFormat = "2006_01_02_15_04_05"

// PreviewName is the always-current preview written next to the images.
const PreviewName = "last_image.jpg"

const (
	spoolDirName = ".spool"
	maxSeq       = 100 // two-digit sequence space per prefix and second
)

// WriteError is a filesystem failure in the output tree: disk full, bad
// permissions, exhausted sequence space. Recoverable; the schedule continues.
type WriteError struct {
	Op   string // "spool", "commit", "preview", "sweep"
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("output %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer commits captured frames into the output tree. The spool root lives
// under the base directory so spool and final tree always share a filesystem
// and the final rename is atomic.
type Writer struct {
	base  string
	spool string
}

// NewWriter creates the base and spool directories. It never sweeps: a
// one-shot capture may share the tree with a running daemon, so only the
// daemon calls SweepSpool.
func NewWriter(base string) (*Writer, error) {
	spool := filepath.Join(base, spoolDirName)
	if err := os.MkdirAll(spool, 0o755); err != nil {
		return nil, &WriteError{Op: "spool", Path: spool, Err: err}
	}
	return &Writer{base: base, spool: spool}, nil
}

// Base returns the output tree root.
func (w *Writer) Base() string { return w.base }

// Spool returns a fresh directory for one capture attempt.
func (w *Writer) Spool(prefix string) (string, error) {
	dir, err := os.MkdirTemp(w.spool, prefix+"-")
	if err != nil {
		return "", &WriteError{Op: "spool", Path: w.spool, Err: err}
	}
	return dir, nil
}

// DiscardSpool drops a spool directory and whatever a failed capture left in
// it. Nothing in it ever reached a final path.
func (w *Writer) DiscardSpool(dir string) {
	_ = os.RemoveAll(dir)
}

// SweepSpool removes every leftover spool directory, e.g. after a crash.
// Only the daemon calls this, at startup and periodically.
func (w *Writer) SweepSpool() (int, error) {
	entries, err := os.ReadDir(w.spool)
	if err != nil {
		return 0, &WriteError{Op: "sweep", Path: w.spool, Err: err}
	}
	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.spool, e.Name())); err != nil {
			return removed, &WriteError{Op: "sweep", Path: e.Name(), Err: err}
		}
		removed++
	}
	return removed, nil
}

// Commit renames every spool file into the prefix directory under the stem
// {prefix}_{timestamp}_{seq}. One sequence number per commit, so a JPEG and
// its raw sidecar stay together; extensions are lowercased with .jpeg
// folded into .jpg. Files appear at their final paths complete or not at all.
func (w *Writer) Commit(prefix string, ts time.Time, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, &WriteError{Op: "commit", Path: prefix, Err: fmt.Errorf("nothing to commit")}
	}

	dir := filepath.Join(w.base, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &WriteError{Op: "commit", Path: dir, Err: err}
	}

	stem := prefix + "_" + ts.Format(timeFormat)
	seq, err := nextSeq(dir, stem)
	if err != nil {
		return nil, &WriteError{Op: "commit", Path: dir, Err: err}
	}

	out := make([]string, 0, len(files))
	for _, src := range files {
		dst := filepath.Join(dir, fmt.Sprintf("%s_%02d%s", stem, seq, normalizeExt(src)))
		if err := os.Rename(src, dst); err != nil {
			return out, &WriteError{Op: "commit", Path: dst, Err: err}
		}
		out = append(out, dst)
	}
	return out, nil
}

// WritePreview copies src over {prefix}/last_image.jpg through a temp file,
// so readers always get a complete image.
func (w *Writer) WritePreview(prefix, src string) error {
	dir := filepath.Join(w.base, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Op: "preview", Path: dir, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &WriteError{Op: "preview", Path: src, Err: err}
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".preview-*")
	if err != nil {
		return &WriteError{Op: "preview", Path: dir, Err: err}
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &WriteError{Op: "preview", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &WriteError{Op: "preview", Path: tmp.Name(), Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return &WriteError{Op: "preview", Path: tmp.Name(), Err: err}
	}

	dst := filepath.Join(dir, PreviewName)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return &WriteError{Op: "preview", Path: dst, Err: err}
	}
	return nil
}

// PreviewPath returns where the preview for a prefix lives.
func (w *Writer) PreviewPath(prefix string) string {
	return filepath.Join(w.base, prefix, PreviewName)
}

// PreviewSource picks the file to use as preview from a committed set: the
// first JPEG, if any.
func PreviewSource(files []string) (string, bool) {
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".jpg") {
			return f, true
		}
	}
	return "", false
}

// nextSeq scans dir for the first free sequence slot under stem.
func nextSeq(dir, stem string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	used := make(map[int]bool)
	marker := stem + "_"
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e.Name(), marker)
		if !ok || len(rest) < 2 {
			continue
		}
		if n, err := strconv.Atoi(rest[:2]); err == nil {
			used[n] = true
		}
	}
	for n := 0; n < maxSeq; n++ {
		if !used[n] {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no free sequence slot for %s (%d used)", stem, maxSeq)
}

func normalizeExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}
