package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingFileWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	writer, err := NewRotatingFileWriter(logFile, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	if writer.filePath != logFile {
		t.Errorf("FilePath = %q, want %q", writer.filePath, logFile)
	}
	if writer.maxSize != 1024 {
		t.Errorf("MaxSize = %d, want 1024", writer.maxSize)
	}
	if writer.maxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", writer.maxBackups)
	}

	if _, err := NewRotatingFileWriter(logFile, 0, 3); err == nil {
		t.Error("Expected error for zero max size")
	}
}

func TestRotatingFileWriterAppendsToExisting(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logFile, []byte("existing\n"), 0600); err != nil {
		t.Fatal(err)
	}

	writer, err := NewRotatingFileWriter(logFile, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	if writer.size != int64(len("existing\n")) {
		t.Errorf("size = %d, want %d", writer.size, len("existing\n"))
	}

	if _, err := writer.Write([]byte("appended\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = writer.Close()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "existing\nappended\n" {
		t.Errorf("content = %q", string(content))
	}
}

func TestRotatingFileWriterRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "crawl.log")

	writer, err := NewRotatingFileWriter(logFile, 20, 2)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	// Each record is 16 bytes so every write after the first rotates
	for i := 1; i <= 4; i++ {
		line := fmt.Sprintf("record number %d\n", i)
		if _, err := writer.Write([]byte(line)); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	expect := map[string]string{
		"crawl.log":   "record number 4\n",
		"crawl.1.log": "record number 3\n",
		"crawl.2.log": "record number 2\n",
	}
	for name, want := range expect {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", name, err)
		}
		if string(content) != want {
			t.Errorf("%s = %q, want %q", name, string(content), want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "crawl.3.log")); !os.IsNotExist(err) {
		t.Error("Expected backups beyond MaxBackups to be removed")
	}
}

func TestRotatingFileWriterNoBackups(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "crawl.log")

	writer, err := NewRotatingFileWriter(logFile, 10, 0)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	_, _ = writer.Write([]byte("12345678\n"))
	_, _ = writer.Write([]byte("abcdefgh\n"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the live log file, got %d entries", len(entries))
	}
	content, _ := os.ReadFile(logFile)
	if string(content) != "abcdefgh\n" {
		t.Errorf("content = %q", string(content))
	}
}

func TestRotatingFileWriterOversizedRecord(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "big.log")

	writer, err := NewRotatingFileWriter(logFile, 10, 1)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	defer writer.Close()

	big := strings.Repeat("x", 50)
	n, err := writer.Write([]byte(big))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(big) {
		t.Errorf("Write returned %d, want %d", n, len(big))
	}
}

func TestRotatingFileWriterClosed(t *testing.T) {
	writer, err := NewRotatingFileWriter(filepath.Join(t.TempDir(), "c.log"), 100, 1)
	if err != nil {
		t.Fatalf("NewRotatingFileWriter failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if _, err := writer.Write([]byte("late")); err == nil {
		t.Error("Expected error writing to a closed writer")
	}
}
