package main

import (
	"strings"
	"testing"
)

func TestRootCommandRequiresInput(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "no input files") {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestRootCommandDeclaresPathFlag(t *testing.T) {
	flag := newRootCommand().Flags().Lookup("path")
	if flag == nil || flag.Shorthand != "p" {
		t.Fatalf("expected --path/-p flag, got %+v", flag)
	}
}
