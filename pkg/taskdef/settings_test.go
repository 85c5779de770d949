package taskdef

import (
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()
	s := New().Settings
	if s.MultipleInstancesPolicy != IgnoreNew {
		t.Fatalf("MultipleInstancesPolicy = %v", s.MultipleInstancesPolicy)
	}
	if !s.DisallowStartIfOnBatteries || !s.StopIfGoingOnBatteries || !s.AllowHardTerminate {
		t.Fatalf("battery/terminate defaults wrong: %+v", s)
	}
	if s.StartWhenAvailable || s.RunOnlyIfNetworkAvailable {
		t.Fatalf("availability defaults wrong: %+v", s)
	}
	if !s.IdleSettings.StopOnIdleEnd || s.IdleSettings.RestartOnIdle {
		t.Fatalf("idle defaults wrong: %+v", s.IdleSettings)
	}
	if !s.AllowStartOnDemand || !s.Enabled || s.Hidden || s.RunOnlyIfIdle || s.WakeToRun {
		t.Fatalf("flag defaults wrong: %+v", s)
	}
	if s.ExecutionTimeLimit != "PT72H" || s.Priority != 7 {
		t.Fatalf("limit/priority = %q/%d", s.ExecutionTimeLimit, s.Priority)
	}
	if New().Version.String() != "1.2" {
		t.Fatalf("default version = %s", New().Version)
	}
}

func TestEnumStrings(t *testing.T) {
	t.Parallel()
	if Queue.String() != "Queue" || IgnoreNew.String() != "IgnoreNew" {
		t.Fatalf("policy strings: %s %s", Queue, IgnoreNew)
	}
	if V1_4.String() != "1.4" || V1_2.String() != "1.2" {
		t.Fatalf("version strings: %s %s", V1_2, V1_4)
	}
}

func TestExecutionTimeLimit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{time.Hour, "PT1H"},
		{72 * time.Hour, "PT72H"},
		{90 * time.Minute, "PT1H30M"},
		{45 * time.Second, "PT45S"},
		{MaxExecutionTimeLimit, "PT3276H"},
	}
	for _, tt := range tests {
		got, err := ExecutionTimeLimit(tt.d)
		if err != nil {
			t.Fatalf("ExecutionTimeLimit(%v) error: %v", tt.d, err)
		}
		if got != tt.want {
			t.Fatalf("ExecutionTimeLimit(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestExecutionTimeLimitRejectsInexact(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{
		time.Millisecond,
		1500 * time.Millisecond,
		-time.Hour,
		MaxExecutionTimeLimit + time.Hour,
		100000 * time.Hour,
	} {
		if got, err := ExecutionTimeLimit(d); err == nil {
			t.Fatalf("ExecutionTimeLimit(%v) = %q, want error", d, got)
		}
	}
}
