package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/andresmejia3/facetrail/internal/utils"
	"github.com/rs/zerolog"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func newMockWorker(reply string) (*Worker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	binary.Write(dataPipeMock, binary.BigEndian, uint32(len(reply)))
	dataPipeMock.WriteString(reply)

	return &Worker{
		ID:          1,
		Stdin:       stdinMock,
		DataPipe:    dataPipeMock,
		JPEGQuality: 80,
		// Cmd is nil because we aren't testing process management, just the protocol
	}, stdinMock
}

func TestProcessFrame(t *testing.T) {
	w, stdinMock := newMockWorker(`[{"box":[10,20,50,70],"landmarks":[[20,35],[40,35],[30,45],[22,58],[38,58]],"score":0.98}]`)

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	faces, err := w.ProcessFrame(inputFrame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// Verify we sent the correct data TO the worker
	sentData := stdinMock.Bytes()
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if binary.BigEndian.Uint32(sentData[:4]) != uint32(len(inputFrame)) {
		t.Errorf("Length header mismatch: %v", sentData[:4])
	}

	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}
	if faces[0].Box != [4]float64{10, 20, 50, 70} {
		t.Errorf("Unexpected box %v", faces[0].Box)
	}
	if faces[0].Landmarks[2] != [2]float64{30, 45} {
		t.Errorf("Unexpected nose landmark %v", faces[0].Landmarks[2])
	}
}

func TestProcessFrame_Error(t *testing.T) {
	errMsg := "Exception: model not found"
	w, _ := newMockWorker(`{"error": "` + errMsg + `"}`)

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "detector worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "detector worker error: "+errMsg, err)
	}
}

func TestProcessFrame_Malformed(t *testing.T) {
	w, _ := newMockWorker(`not json`)
	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("Expected malformed reply error, got %v", err)
	}
}

func TestProcessFrame_Truncated(t *testing.T) {
	w := &Worker{
		ID:       1,
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: &MockCloser{Buffer: bytes.NewBuffer([]byte{0x00, 0x00})},
	}
	_, err := w.ProcessFrame([]byte("frame"))
	if !errors.Is(err, types.ErrDetectorExited) {
		t.Fatalf("Expected ErrDetectorExited for a truncated reply header, got %v", err)
	}

	// the worker is not asked again
	sent := w.Stdin.(*MockCloser).Len()
	if _, err := w.ProcessFrame([]byte("frame")); !errors.Is(err, types.ErrDetectorExited) {
		t.Fatalf("Expected the exit to be sticky, got %v", err)
	}
	if w.Stdin.(*MockCloser).Len() != sent {
		t.Error("Expected no data written to a dead worker")
	}
}

func TestProcessFrame_CrashLogged(t *testing.T) {
	var logs bytes.Buffer
	w := &Worker{
		ID:       2,
		Cmd:      &utils.SafeCommand{Stderr: bytes.NewBufferString("Traceback: model failed to load")},
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: &MockCloser{Buffer: new(bytes.Buffer)},
		Log:      zerolog.New(&logs),
	}
	if _, err := w.ProcessFrame([]byte("frame")); !errors.Is(err, types.ErrDetectorExited) {
		t.Fatalf("Expected ErrDetectorExited, got %v", err)
	}

	out := logs.String()
	for _, want := range []string{`"level":"error"`, `"worker":2`, "Traceback: model failed to load", "detector worker crashed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in crash log, got %q", want, out)
		}
	}
}

func TestDetect(t *testing.T) {
	w, stdinMock := newMockWorker(`[{"box":[1,2,11,12],"landmarks":[[0,0],[0,0],[0,0],[0,0],[0,0]],"score":0.5}]`)

	img := image.NewRGBA(image.Rect(100, 50, 164, 114))
	dets, err := w.Detect(context.Background(), types.Frame{Index: 4, Image: img})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	sent := stdinMock.Bytes()
	if len(sent) < 6 || sent[4] != 0xFF || sent[5] != 0xD8 {
		t.Fatalf("Expected a JPEG payload after the length header")
	}

	want := types.Rect{X1: 101, Y1: 52, X2: 111, Y2: 62}
	if len(dets) != 1 || dets[0].Box != want {
		t.Errorf("Expected box shifted into frame coordinates %v, got %+v", want, dets)
	}

	if _, err := w.Detect(context.Background(), types.Frame{}); err == nil {
		t.Error("Expected error for a frame without image")
	}
}
