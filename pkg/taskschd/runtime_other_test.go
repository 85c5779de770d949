//go:build !windows

package taskschd

import "testing"

func TestPlatformRuntimeUnsupported(t *testing.T) {
	err := CreateTask("demo", "<Task/>")
	if !IsUnsupported(err) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if err := DeleteTask("demo"); !IsUnsupported(err) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}
