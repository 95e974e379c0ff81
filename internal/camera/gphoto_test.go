package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptedRunner plays back canned tool responses in order and records every
// call for verification.
type scriptedRunner struct {
	calls  [][]string
	script []response
}

type response struct {
	out   []byte
	err   error
	write func() // side effect, e.g. dropping the downloaded file
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if len(r.script) == 0 {
		return nil, nil
	}
	resp := r.script[0]
	r.script = r.script[1:]
	if resp.write != nil {
		resp.write()
	}
	return resp.out, resp.err
}

func (r *scriptedRunner) call(i int) []string {
	if i >= len(r.calls) {
		return nil
	}
	return r.calls[i]
}

func hasArg(call []string, want string) bool {
	for _, a := range call {
		if a == want {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

const autoDetectTwo = `Model                          Port
----------------------------------------------------------
Nikon DSC D750                 usb:001,004
Canon EOS 700D                 usb:001,007
`

func TestDetectTethered_ParsesPortsAndSerials(t *testing.T) {
	run := &scriptedRunner{script: []response{
		{out: []byte(autoDetectTwo)},
		{out: []byte("Label: Serial Number\nType: TEXT\nCurrent: 6d6f7269\n")},
		{out: []byte("Label: Serial Number\nType: TEXT\nCurrent: none\n")},
	}}

	cams, err := DetectTethered(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cams) != 1 {
		t.Fatalf("got %d cameras (%v), want 1 ('none' serials are skipped)", len(cams), cams)
	}
	port, ok := cams["6d6f7269"]
	if !ok {
		t.Fatalf("serial 6d6f7269 missing from %v", cams)
	}
	if got := port.String(); got != "usb:001,004" {
		t.Errorf("port = %q, want usb:001,004", got)
	}

	// First the bus scan, then one serial lookup per port.
	if len(run.calls) != 3 {
		t.Fatalf("got %d tool calls, want 3", len(run.calls))
	}
	if !hasArg(run.call(0), "--auto-detect") {
		t.Errorf("first call should be --auto-detect, got %v", run.call(0))
	}
	if !hasArg(run.call(1), "--port=usb:001,004") || !hasArg(run.call(1), "--get-config=serialnumber") {
		t.Errorf("serial lookup call = %v", run.call(1))
	}
}

func TestDetectTethered_NoCameras(t *testing.T) {
	run := &scriptedRunner{script: []response{
		{out: []byte("Model                          Port\n---\n")},
	}}
	cams, err := DetectTethered(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cams) != 0 {
		t.Errorf("got %v, want no cameras", cams)
	}
}

func TestDetectTethered_SkipsUnresponsivePort(t *testing.T) {
	run := &scriptedRunner{script: []response{
		{out: []byte(autoDetectTwo)},
		{out: nil, err: errors.New("I/O problem")},
		{out: []byte("Current: abc123\n")},
	}}
	cams, err := DetectTethered(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cams) != 1 || cams["abc123"] == (Port{}) {
		t.Errorf("got %v, want just abc123", cams)
	}
}

func TestGPhoto_CaptureSuccess(t *testing.T) {
	dir := t.TempDir()
	run := &scriptedRunner{script: []response{
		{out: []byte(autoDetectTwo)},
		{out: []byte("Current: 6d6f7269\n")},
		{out: []byte("Current: none\n")},
		{
			out: []byte("New file is in location /capt0000.jpg on the camera\nSaving file as cam01.jpg\n"),
			write: func() {
				writeFile(t, filepath.Join(dir, "cam01.jpg"))
				writeFile(t, filepath.Join(dir, "cam01.nef"))
			},
		},
	}}

	cam := NewGPhoto("cam01", "6d6f7269", run)
	files, err := cam.Capture(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got files %v, want the jpg and the nef", files)
	}

	capture := run.call(3)
	for _, want := range []string{
		"--port=usb:001,004",
		"--set-config=capturetarget=0",
		"--force-overwrite",
		"--capture-image-and-download",
		"--filename=" + filepath.Join(dir, "cam01.%C"),
	} {
		if !hasArg(capture, want) {
			t.Errorf("capture call missing %q: %v", want, capture)
		}
	}
}

func TestGPhoto_CaptureRetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	run := &scriptedRunner{script: []response{
		{out: []byte(autoDetectTwo)},
		{out: []byte("Current: 6d6f7269\n")},
		{out: []byte("Current: none\n")},
		{out: []byte("*** Error: PTP I/O problem ***")},
		{out: nil, err: errors.New("exit status 1")},
		{
			out:   []byte("Saving file as cam01.jpg\n"),
			write: func() { writeFile(t, filepath.Join(dir, "cam01.jpg")) },
		},
	}}

	cam := NewGPhoto("cam01", "6d6f7269", run)
	files, err := cam.Capture(context.Background(), dir)
	if err != nil {
		t.Fatalf("capture should survive two flaky attempts, got: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("got files %v, want one", files)
	}
	// detect (3 calls) + 3 capture attempts
	if len(run.calls) != 6 {
		t.Errorf("got %d tool calls, want 6", len(run.calls))
	}
}

func TestGPhoto_CaptureGivesUp(t *testing.T) {
	dir := t.TempDir()
	script := []response{
		{out: []byte(autoDetectTwo)},
		{out: []byte("Current: 6d6f7269\n")},
		{out: []byte("Current: none\n")},
	}
	for i := 0; i < captureAttempts; i++ {
		// Exit status 0 but an error on the console still counts as failure.
		script = append(script, response{out: []byte("*** Error ***\nAn error occurred in the io-library")})
	}
	run := &scriptedRunner{script: script}

	cam := NewGPhoto("cam01", "6d6f7269", run)
	_, err := cam.Capture(context.Background(), dir)
	if err == nil {
		t.Fatal("expected error after exhausting attempts, got nil")
	}
	var cerr *CaptureError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *CaptureError", err)
	}
	if cerr.Source != "cam01" || cerr.Op != "capture" {
		t.Errorf("error = %+v, want source cam01 op capture", cerr)
	}
	if len(run.calls) != 3+captureAttempts {
		t.Errorf("got %d tool calls, want %d", len(run.calls), 3+captureAttempts)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("failed capture left files behind: %v", entries)
	}
}

func TestGPhoto_SerialNotAttached(t *testing.T) {
	run := &scriptedRunner{script: []response{
		{out: []byte(autoDetectTwo)},
		{out: []byte("Current: other1\n")},
		{out: []byte("Current: other2\n")},
	}}

	cam := NewGPhoto("cam01", "6d6f7269", run)
	_, err := cam.Capture(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing serial, got nil")
	}
	var cerr *CaptureError
	if !errors.As(err, &cerr) || cerr.Op != "detect" {
		t.Errorf("error = %v, want detect CaptureError", err)
	}
	if !strings.Contains(err.Error(), "6d6f7269") {
		t.Errorf("error should name the serial: %v", err)
	}
	// No capture attempt without a port.
	if len(run.calls) != 3 {
		t.Errorf("got %d tool calls, want 3 (scan only)", len(run.calls))
	}
}

func TestGPhoto_ImplementsCamera(t *testing.T) {
	var _ Camera = NewGPhoto("cam01", "s", &scriptedRunner{})
}

func TestContainsError(t *testing.T) {
	cases := []struct {
		out  string
		want bool
	}{
		{"Saving file as cam01.jpg", false},
		{"*** Error ***", true},
		{"AN ERROR OCCURRED", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := containsError([]byte(tc.out)); got != tc.want {
			t.Errorf("containsError(%q) = %v, want %v", tc.out, got, tc.want)
		}
	}
}
