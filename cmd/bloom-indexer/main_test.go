package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bloomsocial/indexer"
)

func TestRunExportWritesFileAndChecksum(t *testing.T) {
	dir := t.TempDir()
	cfg := &indexer.Config{
		ExportDir: filepath.Join(dir, "exports"),
		Database: indexer.DatabaseConfig{
			Driver: indexer.DriverSQLite,
			DSN:    filepath.Join(dir, "indexer.db"),
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runExport(context.Background(), cfg, logger, indexer.FormatCSV, 0, 0); err != nil {
		t.Fatalf("export: %v", err)
	}
	entries, err := os.ReadDir(cfg.ExportDir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	var data, sidecar string
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".csv.sha256"):
			sidecar = entry.Name()
		case strings.HasSuffix(entry.Name(), ".csv"):
			data = entry.Name()
		}
	}
	if data == "" || sidecar != data+".sha256" {
		t.Fatalf("unexpected export files: %v", entries)
	}
	raw, err := os.ReadFile(filepath.Join(cfg.ExportDir, data))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(raw), "sequence,content_id,kind,account,amount,claimed_at") {
		t.Fatalf("missing csv header: %q", raw)
	}
}

func TestRunExportRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := &indexer.Config{
		ExportDir: dir,
		Database:  indexer.DatabaseConfig{Driver: indexer.DriverSQLite, DSN: filepath.Join(dir, "indexer.db")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runExport(context.Background(), cfg, logger, "xml", 0, 0); err == nil {
		t.Fatalf("expected unknown format to fail")
	}
}
