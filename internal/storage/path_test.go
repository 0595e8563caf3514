package storage

import (
	"testing"
	"time"
)

func TestBuildHistoryArchivePath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildHistoryArchivePath(ts, 55, 3)
	if err != nil {
		t.Fatalf("BuildHistoryArchivePath() error = %v", err)
	}
	want := "history/date=2026-02-20/part-55-00003.parquet"
	if key != want {
		t.Fatalf("BuildHistoryArchivePath() = %q, want %q", key, want)
	}
}

func TestBuildHistoryArchivePathRejectsInvalidInput(t *testing.T) {
	if _, err := BuildHistoryArchivePath(time.Now(), 0, 1); err == nil {
		t.Fatal("expected batch id error")
	}
	if _, err := BuildHistoryArchivePath(time.Now(), 1, -1); err == nil {
		t.Fatal("expected sequence error")
	}
}

func TestHistoryArchivePrefix(t *testing.T) {
	if got := HistoryArchivePrefix(time.Time{}); got != "history/" {
		t.Fatalf("HistoryArchivePrefix(zero) = %q", got)
	}
	day := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	if got := HistoryArchivePrefix(day); got != "history/date=2026-03-02/" {
		t.Fatalf("HistoryArchivePrefix() = %q", got)
	}
}

func TestValidatePathComponent(t *testing.T) {
	if err := ValidatePathComponent("history", "view name"); err != nil {
		t.Fatalf("ValidatePathComponent() error = %v", err)
	}
	if err := ValidatePathComponent("../oops", "view name"); err == nil {
		t.Fatal("expected invalid component error")
	}
	if !IsParquetKey("history/date=2026-03-02/part-1-00000.PARQUET") {
		t.Fatal("expected parquet key")
	}
}

func TestHistoryArchiveDay(t *testing.T) {
	day, ok := HistoryArchiveDay("history/date=2026-03-02/part-4-00000.parquet")
	if !ok || !day.Equal(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("HistoryArchiveDay() = %s, %v", day, ok)
	}
	for _, key := range []string{"history/part-1.parquet", "other/date=2026-03-02/x.parquet", "history/date=2026-13-40/x.parquet"} {
		if _, ok := HistoryArchiveDay(key); ok {
			t.Fatalf("HistoryArchiveDay(%q) ok = true", key)
		}
	}
}
