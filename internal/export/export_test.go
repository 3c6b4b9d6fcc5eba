package export

import (
	"bytes"
	"testing"
	"time"

	"lojack-go/lojack"
)

func sampleTrack() []lojack.Location {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	lat, lng := 37.7749, -122.4194
	speed := 42.5
	accuracy := 10.0
	event := "IGNITION_ON"
	return []lojack.Location{
		{Latitude: &lat, Longitude: &lng, Timestamp: &ts, Speed: &speed, Accuracy: &accuracy, EventType: &event},
		{},
	}
}

func TestBuildTrackPDF(t *testing.T) {
	data, err := BuildTrackPDF("dev-1", "Van 12", sampleTrack())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty pdf")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("expected pdf magic, got %q", data[:4])
	}
}

func TestBuildTrackPDFEmptyTrack(t *testing.T) {
	data, err := BuildTrackPDF("dev-1", "", nil)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty pdf for empty track")
	}
}

func TestBuildTrackXLSX(t *testing.T) {
	data, err := BuildTrackXLSX("dev-1", "Van 12", sampleTrack())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty workbook")
	}
	// XLSX is a zip container.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("expected zip magic, got %q", data[:2])
	}
}
