package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var commitTime = time.Date(2023, 5, 1, 10, 0, 0, 0, time.Local)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// spoolFile drops a file into a fresh spool dir and returns its path.
func spoolFile(t *testing.T, w *Writer, prefix, name, content string) string {
	t.Helper()
	dir, err := w.Spool(prefix)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommit_PathExample(t *testing.T) {
	w := newTestWriter(t)
	src := spoolFile(t, w, "CAM01", "cam01.jpg", "image")

	files, err := w.Commit("CAM01", commitTime, []string{src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(w.Base(), "CAM01", "CAM01_2023_05_01_10_00_00_00.jpg")
	if len(files) != 1 || files[0] != want {
		t.Fatalf("committed %v, want [%s]", files, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("committed file unreadable: %v", err)
	}
	if string(data) != "image" {
		t.Errorf("content = %q, want %q", data, "image")
	}
}

func TestCommit_SameSecondSequence(t *testing.T) {
	w := newTestWriter(t)

	first := spoolFile(t, w, "CAM01", "cam01.jpg", "a")
	if _, err := w.Commit("CAM01", commitTime, []string{first}); err != nil {
		t.Fatal(err)
	}
	second := spoolFile(t, w, "CAM01", "cam01.jpg", "b")
	files, err := w.Commit("CAM01", commitTime, []string{second})
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(w.Base(), "CAM01", "CAM01_2023_05_01_10_00_00_01.jpg")
	if files[0] != want {
		t.Errorf("second commit = %v, want suffix _01", files)
	}
}

func TestCommit_SequenceSkipsExisting(t *testing.T) {
	w := newTestWriter(t)
	dir := filepath.Join(w.Base(), "CAM01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"00", "01", "02"} {
		if err := os.WriteFile(filepath.Join(dir, "CAM01_2023_05_01_10_00_00_"+n+".jpg"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := spoolFile(t, w, "CAM01", "cam01.jpg", "x")
	files, err := w.Commit("CAM01", commitTime, []string{src})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(files[0], "_03.jpg") {
		t.Errorf("commit = %v, want suffix _03", files)
	}
}

func TestCommit_SidecarsShareSequence(t *testing.T) {
	w := newTestWriter(t)
	dir, err := w.Spool("CAM01")
	if err != nil {
		t.Fatal(err)
	}
	jpg := filepath.Join(dir, "cam01.JPEG")
	nef := filepath.Join(dir, "cam01.NEF")
	for _, p := range []string{jpg, nef} {
		if err := os.WriteFile(p, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := w.Commit("CAM01", commitTime, []string{jpg, nef})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("committed %v, want 2 files", files)
	}
	wantJpg := filepath.Join(w.Base(), "CAM01", "CAM01_2023_05_01_10_00_00_00.jpg")
	wantNef := filepath.Join(w.Base(), "CAM01", "CAM01_2023_05_01_10_00_00_00.nef")
	if files[0] != wantJpg || files[1] != wantNef {
		t.Errorf("committed %v, want [%s %s]", files, wantJpg, wantNef)
	}
}

func TestCommit_SequenceExhausted(t *testing.T) {
	w := newTestWriter(t)
	dir := filepath.Join(w.Base(), "CAM01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for n := 0; n < 100; n++ {
		name := fmt.Sprintf("CAM01_2023_05_01_10_00_00_%02d.jpg", n)
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := spoolFile(t, w, "CAM01", "cam01.jpg", "x")
	_, err := w.Commit("CAM01", commitTime, []string{src})
	if err == nil {
		t.Fatal("expected error with exhausted sequence space, got nil")
	}
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Errorf("error type = %T, want *WriteError", err)
	}
}

func TestCommit_EmptySet(t *testing.T) {
	w := newTestWriter(t)
	if _, err := w.Commit("CAM01", commitTime, nil); err == nil {
		t.Error("expected error for empty commit, got nil")
	}
}

func TestDiscardSpool_NothingReachesTree(t *testing.T) {
	// A failed capture is discarded with its spool; the prefix dir never
	// appears.
	w := newTestWriter(t)
	dir, err := w.Spool("CAM01")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "partial.jpg"), []byte("trunc"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.DiscardSpool(dir)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("spool dir should be gone")
	}
	if _, err := os.Stat(filepath.Join(w.Base(), "CAM01")); !os.IsNotExist(err) {
		t.Error("prefix dir should never have been created")
	}
}

func TestSpool_FreshPerCapture(t *testing.T) {
	w := newTestWriter(t)
	a, err := w.Spool("CAM01")
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Spool("CAM01")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("spool dirs must be unique per capture")
	}
	for _, dir := range []string{a, b} {
		if !strings.HasPrefix(dir, filepath.Join(w.Base(), ".spool")) {
			t.Errorf("spool %s not under the base tree", dir)
		}
	}
}

func TestSweepSpool(t *testing.T) {
	w := newTestWriter(t)
	for i := 0; i < 3; i++ {
		dir, err := w.Spool("CAM01")
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "stale.jpg"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := w.SweepSpool()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Errorf("swept %d dirs, want 3", removed)
	}
	entries, err := os.ReadDir(filepath.Join(w.Base(), ".spool"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("spool root not empty after sweep: %v", entries)
	}
}

func TestWritePreview(t *testing.T) {
	w := newTestWriter(t)
	src := spoolFile(t, w, "CAM01", "cam01.jpg", "frame-1")
	files, err := w.Commit("CAM01", commitTime, []string{src})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WritePreview("CAM01", files[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(w.PreviewPath("CAM01"))
	if err != nil {
		t.Fatalf("preview unreadable: %v", err)
	}
	if string(data) != "frame-1" {
		t.Errorf("preview content = %q, want frame-1", data)
	}

	// The next capture replaces it.
	src = spoolFile(t, w, "CAM01", "cam01.jpg", "frame-2")
	files, err = w.Commit("CAM01", commitTime.Add(time.Minute), []string{src})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WritePreview("CAM01", files[0]); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(w.PreviewPath("CAM01"))
	if string(data) != "frame-2" {
		t.Errorf("preview content = %q, want frame-2", data)
	}
}

func TestWritePreview_MissingSource(t *testing.T) {
	w := newTestWriter(t)
	err := w.WritePreview("CAM01", filepath.Join(w.Base(), "nope.jpg"))
	if err == nil {
		t.Fatal("expected error for missing source, got nil")
	}
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Errorf("error type = %T, want *WriteError", err)
	}
}

func TestPreviewSource(t *testing.T) {
	cases := []struct {
		files []string
		want  string
		ok    bool
	}{
		{[]string{"a/x.nef", "a/x.jpg"}, "a/x.jpg", true},
		{[]string{"a/x.jpg"}, "a/x.jpg", true},
		{[]string{"a/x.nef"}, "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, ok := PreviewSource(tc.files)
		if got != tc.want || ok != tc.ok {
			t.Errorf("PreviewSource(%v) = %q/%v, want %q/%v", tc.files, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextSeq_IgnoresForeignFiles(t *testing.T) {
	w := newTestWriter(t)
	dir := filepath.Join(w.Base(), "CAM01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// The preview and files from other seconds must not consume slots.
	for _, name := range []string{
		"last_image.jpg",
		"CAM01_2023_05_01_09_59_59_00.jpg",
		"CAM01_2023_05_01_10_00_01_00.jpg",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := spoolFile(t, w, "CAM01", "cam01.jpg", "x")
	files, err := w.Commit("CAM01", commitTime, []string{src})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(files[0], "_10_00_00_00.jpg") {
		t.Errorf("commit = %v, want fresh _00 slot", files)
	}
}
