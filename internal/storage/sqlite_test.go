//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "wintask/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wintask.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []AuditEntry{
		{At: at, CallID: "c1", Task: "a", Folder: `\Wintask`, Action: ActionCreate, OK: true, TookMS: 4},
		{At: at.Add(time.Second), CallID: "c2", Task: "b", Action: ActionCreate, Code: 0x80070005, Error: "WinError 0x80070005 : error saving the task"},
		{CallID: "c3", Task: "a", Action: ActionDelete, OK: true},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit error: %v", err)
		}
	}

	recent, err := st.RecentAudit(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAudit error: %v", err)
	}
	if len(recent) != 2 || recent[0].CallID != "c3" || recent[1].CallID != "c2" {
		t.Fatalf("recent = %+v", recent)
	}
	if recent[0].At.IsZero() {
		t.Fatalf("zero At should be stamped")
	}
	failed := recent[1]
	if failed.OK || failed.Code != 0x80070005 || failed.Error != entries[1].Error || !failed.At.Equal(entries[1].At) {
		t.Fatalf("failed attempt not round-tripped: %+v", failed)
	}

	all, err := st.RecentAudit(ctx, 10)
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %+v (%v)", all, err)
	}
	first := all[2]
	if first.CallID != "c1" || !first.OK || first.Folder != `\Wintask` || first.TookMS != 4 || first.Action != ActionCreate {
		t.Fatalf("first entry = %+v", first)
	}

	if got, err := st.RecentAudit(ctx, 0); err != nil || len(got) != 0 {
		t.Fatalf("limit 0 = %+v (%v)", got, err)
	}
}

func TestSQLiteStoreReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wintask.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{CallID: "c1", Task: "a", Action: ActionCreate, OK: true}); err != nil {
		t.Fatalf("AppendAudit error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st.Close()
	got, err := st.RecentAudit(ctx, 5)
	if err != nil || len(got) != 1 || got[0].CallID != "c1" {
		t.Fatalf("after reopen = %+v (%v)", got, err)
	}
}
