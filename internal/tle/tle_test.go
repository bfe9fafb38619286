package tle

import (
	"errors"
	"testing"
	"time"
)

const (
	sampleLine1 = "1 24793U 97020B   24032.50148130 -.00000023  00000-0  00000-0 0  9992"
	sampleLine2 = "2 24793  98.7320 150.2340 0012345 123.4567 236.6543 14.20731234567895"
)

func TestParseLinesValid(t *testing.T) {
	tl, err := ParseLines(sampleLine1, sampleLine2)
	if err != nil {
		t.Fatalf("ParseLines failed: %v", err)
	}

	if tl.NoradID != 24793 {
		t.Errorf("NoradID = %d, want 24793", tl.NoradID)
	}
}

// TestParseEpoch is the S3 scenario: Line1 beginning with epoch field
// "24032.50148130" decodes to 2024-02-01.
func TestParseEpoch(t *testing.T) {
	tl, err := ParseLines(sampleLine1, sampleLine2)
	if err != nil {
		t.Fatalf("ParseLines failed: %v", err)
	}

	wantDate := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	gotDate := time.Date(tl.Epoch.Year(), tl.Epoch.Month(), tl.Epoch.Day(), 0, 0, 0, 0, time.UTC)

	if !gotDate.Equal(wantDate) {
		t.Errorf("Epoch date = %v, want %v", gotDate, wantDate)
	}
}

func TestParseNamed(t *testing.T) {
	tl, err := ParseNamed("SAT-TEST", sampleLine1, sampleLine2)
	if err != nil {
		t.Fatalf("ParseNamed failed: %v", err)
	}
	if tl.Name != "SAT-TEST" {
		t.Errorf("Name = %q, want SAT-TEST", tl.Name)
	}
}

func TestParseStringThreeLine(t *testing.T) {
	blob := "0 SAT-TEST\n" + sampleLine1 + "\n" + sampleLine2 + "\n"
	tl, err := ParseString(blob)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if tl.Name != "SAT-TEST" {
		t.Errorf("Name = %q, want SAT-TEST", tl.Name)
	}
}

func TestParseLinesBadChecksum(t *testing.T) {
	bad := sampleLine1[:len(sampleLine1)-1] + "0"
	_, err := ParseLines(bad, sampleLine2)
	if !errors.Is(err, ErrInvalidChecksum) {
		t.Errorf("err = %v, want ErrInvalidChecksum", err)
	}
}

func TestParseLinesNoradMismatch(t *testing.T) {
	// Valid checksum for the altered line, so the NORAD comparison is reached.
	otherLine2 := "2 24799  98.7320 150.2340 0012345 123.4567 236.6543 14.20731234567891"
	_, err := ParseLines(sampleLine1, otherLine2)
	if !errors.Is(err, ErrNoradMismatch) {
		t.Fatalf("err = %v, want ErrNoradMismatch", err)
	}
}

func TestCacheFileName(t *testing.T) {
	epoch := time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)
	got := CacheFileName(24793, epoch)
	want := "24793_2024-02-01.tle"
	if got != want {
		t.Errorf("CacheFileName = %q, want %q", got, want)
	}
}
