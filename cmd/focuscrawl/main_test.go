package main

import (
	"os"
	"testing"

	"github.com/masahif/focuscrawl/internal/cmd"
)

func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty string")
	}

	if BuildTime == "" {
		t.Error("BuildTime should not be empty string")
	}
}

func TestMainWithHelp(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	cmd.SetVersionInfo(Version, BuildTime)

	// Help exits the command before any crawl starts
	os.Args = []string{"focuscrawl", "--help"}

	if err := cmd.Execute(); err != nil {
		t.Errorf("cmd.Execute() with help should not return error, got: %v", err)
	}
}

func TestMainWithVersion(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	cmd.SetVersionInfo("1.0.0-test", "2023-12-01T10:00:00Z")

	os.Args = []string{"focuscrawl", "--version"}

	if err := cmd.Execute(); err != nil {
		t.Errorf("cmd.Execute() with version should not return error, got: %v", err)
	}
}

func TestMainWithoutURL(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"focuscrawl", "--docs", t.TempDir(), "--database", ""}

	if err := cmd.Execute(); err == nil {
		t.Error("cmd.Execute() without a start URL should return an error")
	}
}
