package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Siguza/imobax/internal/layout"
	"github.com/Siguza/imobax/internal/manifest"
)

func entry(domain, rel string) manifest.Entry {
	return manifest.Entry{FileID: manifest.FileID(domain, rel), Domain: domain, RelativePath: rel}
}

// writeBlobs stores content for each entry under src using l and returns
// the entries in the given order.
func writeBlobs(t *testing.T, src string, l layout.Layout, files []manifest.Entry, content func(manifest.Entry) string) {
	t.Helper()
	for _, e := range files {
		p := filepath.Join(src, filepath.FromSlash(l.BlobPath(e.FileID)))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content(e)), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func blobContent(e manifest.Entry) string {
	return "content of " + e.Domain + "/" + e.RelativePath
}

func newTestRestorer(t *testing.T, opts Options) *Restorer {
	t.Helper()
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func assertMissing(t *testing.T, p string) {
	t.Helper()
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("%s exists, want missing (err = %v)", p, err)
	}
}

var sampleEntries = []manifest.Entry{
	entry("HomeDomain", "Library/SMS/sms.db"),
	entry("AppDomain-com.example.app", "Documents/a.txt"),
	entry("AppDomainGroup-group.com.foo", "x/y.plist"),
	entry("CameraRollDomain", "Media/DCIM/100APPLE/IMG-0001.JPG"),
}

func TestRestoreLayouts(t *testing.T) {
	for _, l := range []layout.Layout{layout.TwoLevel, layout.Flat} {
		t.Run(l.String(), func(t *testing.T) {
			src := t.TempDir()
			dst := filepath.Join(t.TempDir(), "out", "nested")
			writeBlobs(t, src, l, sampleEntries, blobContent)

			r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: l})
			report, err := r.Restore(context.Background(), sampleEntries)
			if err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if report.Restored != len(sampleEntries) || report.Skipped != 0 {
				t.Errorf("report = %d restored, %d skipped", report.Restored, report.Skipped)
			}

			wantPaths := []string{
				"HomeDomain/Library/SMS/sms.db",
				"AppDomain/com.example.app/Documents/a.txt",
				"AppDomainGroup/group.com.foo/x/y.plist",
				"CameraRollDomain/Media/DCIM/100APPLE/IMG-0001.JPG",
			}
			var total int64
			for i, e := range sampleEntries {
				p := filepath.Join(dst, filepath.FromSlash(wantPaths[i]))
				if got := readFile(t, p); got != blobContent(e) {
					t.Errorf("%s = %q, want %q", wantPaths[i], got, blobContent(e))
				}
				if report.Results[i].Status != StatusRestored {
					t.Errorf("result %d status = %v", i, report.Results[i].Status)
				}
				total += int64(len(blobContent(e)))
			}
			if report.Bytes != total {
				t.Errorf("report.Bytes = %d, want %d", report.Bytes, total)
			}
		})
	}
}

func TestRestoreWrongLayoutIsMissing(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeBlobs(t, src, layout.Flat, sampleEntries[:1], blobContent)

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel})
	_, err := r.Restore(context.Background(), sampleEntries[:1])
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}
}

func TestRestoreNoForceExisting(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := sampleEntries[0]
	writeBlobs(t, src, layout.TwoLevel, []manifest.Entry{e}, blobContent)

	existing := filepath.Join(dst, "HomeDomain", "Library", "SMS", "sms.db")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(existing, []byte("keep me"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel})
	report, err := r.Restore(context.Background(), []manifest.Entry{e})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if got := readFile(t, existing); got != "keep me" {
		t.Errorf("existing file = %q, want unchanged", got)
	}
	if report.Restored != 0 {
		t.Errorf("report.Restored = %d, want 0", report.Restored)
	}
}

func TestRestoreForceReplaces(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := sampleEntries[0]
	writeBlobs(t, src, layout.TwoLevel, []manifest.Entry{e}, blobContent)

	existing := filepath.Join(dst, "HomeDomain", "Library", "SMS", "sms.db")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(existing, []byte("old content, longer than the new one"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel, Force: true})
	if _, err := r.Restore(context.Background(), []manifest.Entry{e}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readFile(t, existing); got != blobContent(e) {
		t.Errorf("file = %q, want %q", got, blobContent(e))
	}
}

func TestRestoreIgnoreMissing(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	missing := sampleEntries[1]
	present := []manifest.Entry{sampleEntries[0], sampleEntries[2], sampleEntries[3]}
	writeBlobs(t, src, layout.TwoLevel, present, blobContent)

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel, IgnoreMissing: true})
	report, err := r.Restore(context.Background(), sampleEntries)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if report.Restored != 3 || report.Skipped != 1 {
		t.Errorf("report = %d restored, %d skipped, want 3 and 1", report.Restored, report.Skipped)
	}
	if diff := cmp.Diff([]manifest.Entry{missing}, report.Missing()); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}

	assertMissing(t, filepath.Join(dst, "AppDomain"))
	for _, p := range []string{
		"HomeDomain/Library/SMS/sms.db",
		"AppDomainGroup/group.com.foo/x/y.plist",
		"CameraRollDomain/Media/DCIM/100APPLE/IMG-0001.JPG",
	} {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not restored: %v", p, err)
		}
	}
}

func TestRestoreMissingAborts(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	present := []manifest.Entry{sampleEntries[0], sampleEntries[2], sampleEntries[3]}
	writeBlobs(t, src, layout.TwoLevel, present, blobContent)

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel})
	report, err := r.Restore(context.Background(), sampleEntries)
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}

	// The entry before the missing one was restored, nothing after it.
	if _, err := os.Stat(filepath.Join(dst, "HomeDomain", "Library", "SMS", "sms.db")); err != nil {
		t.Errorf("first entry not restored: %v", err)
	}
	assertMissing(t, filepath.Join(dst, "AppDomainGroup"))
	assertMissing(t, filepath.Join(dst, "CameraRollDomain"))

	wantStatus := []Status{StatusRestored, StatusFailed, StatusPending, StatusPending}
	for i, want := range wantStatus {
		if got := report.Results[i].Status; got != want {
			t.Errorf("result %d status = %v, want %v", i, got, want)
		}
	}
}

func TestRestoreMissingPrefixDirectory(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := sampleEntries[0]

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel, IgnoreMissing: true})
	report, err := r.Restore(context.Background(), []manifest.Entry{e})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("report.Skipped = %d, want 1", report.Skipped)
	}
}

func TestRestoreUnsafePath(t *testing.T) {
	tests := []manifest.Entry{
		entry("..", "escape.txt"),
		entry("HomeDomain", "../../escape.txt"),
		entry("AppDomain-..", "../escape.txt"),
	}
	for _, e := range tests {
		t.Run(e.Domain+"/"+e.RelativePath, func(t *testing.T) {
			src := t.TempDir()
			parent := t.TempDir()
			dst := filepath.Join(parent, "target")
			writeBlobs(t, src, layout.Flat, []manifest.Entry{e}, blobContent)

			r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.Flat})
			_, err := r.Restore(context.Background(), []manifest.Entry{e})
			if !errors.Is(err, ErrUnsafePath) {
				t.Fatalf("err = %v, want ErrUnsafePath", err)
			}
			assertMissing(t, filepath.Join(parent, "escape.txt"))
		})
	}
}

func TestRestoreDuplicateDestination(t *testing.T) {
	// Two different records whose destinations collide.
	a := entry("AppDomain-com.foo", "x")
	b := entry("AppDomain", "com.foo/x")

	t.Run("no force", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		writeBlobs(t, src, layout.TwoLevel, []manifest.Entry{a, b}, blobContent)

		r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel})
		_, err := r.Restore(context.Background(), []manifest.Entry{a, b})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("err = %v, want ErrAlreadyExists", err)
		}
		if got := readFile(t, filepath.Join(dst, "AppDomain", "com.foo", "x")); got != blobContent(a) {
			t.Errorf("destination = %q, want first entry's content", got)
		}
	})

	t.Run("force", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		writeBlobs(t, src, layout.TwoLevel, []manifest.Entry{a, b}, blobContent)

		r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel, Force: true})
		if _, err := r.Restore(context.Background(), []manifest.Entry{a, b}); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if got := readFile(t, filepath.Join(dst, "AppDomain", "com.foo", "x")); got != blobContent(b) {
			t.Errorf("destination = %q, want last entry's content", got)
		}
	})
}

func TestRestoreWorkers(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	var entries []manifest.Entry
	for i := 0; i < 200; i++ {
		entries = append(entries, entry(fmt.Sprintf("AppDomain-com.app%d", i%7), fmt.Sprintf("Library/Caches/d%d/f%d", i%5, i)))
	}
	writeBlobs(t, src, layout.TwoLevel, entries, blobContent)

	tracker := NewTracker()
	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel, Workers: 8, Tracker: tracker})
	report, err := r.Restore(context.Background(), entries)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if report.Restored != len(entries) {
		t.Fatalf("report.Restored = %d, want %d", report.Restored, len(entries))
	}
	for _, e := range entries {
		p := filepath.Join(dst, filepath.FromSlash(DestPath(e.Domain, e.RelativePath)))
		if got := readFile(t, p); got != blobContent(e) {
			t.Fatalf("%s = %q, want %q", p, got, blobContent(e))
		}
	}

	snap := tracker.Snapshot()
	if snap.Phase != PhaseComplete || snap.RestoredFiles != len(entries) || snap.Percent != 100 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.BytesCopied != report.Bytes {
		t.Errorf("snapshot bytes = %d, report bytes = %d", snap.BytesCopied, report.Bytes)
	}
	if len(snap.CurrentFiles) != 0 {
		t.Errorf("current files after completion: %v", snap.CurrentFiles)
	}
}

func TestRestoreCancelled(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeBlobs(t, src, layout.TwoLevel, sampleEntries, blobContent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRestorer(t, Options{Source: src, Target: dst, Layout: layout.TwoLevel})
	report, err := r.Restore(ctx, sampleEntries)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Restored != 0 {
		t.Errorf("report.Restored = %d, want 0", report.Restored)
	}
	if phase := r.Tracker().Snapshot().Phase; phase != PhaseCancelled {
		t.Errorf("phase = %v, want %v", phase, PhaseCancelled)
	}
}

func TestRestoreEmpty(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "new")
	r := newTestRestorer(t, Options{Source: t.TempDir(), Target: dst, Layout: layout.Flat})
	report, err := r.Restore(context.Background(), nil)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if report.Restored != 0 {
		t.Errorf("report.Restored = %d", report.Restored)
	}
	if fi, err := os.Stat(dst); err != nil || !fi.IsDir() {
		t.Errorf("target directory not created: %v", err)
	}
}

func TestRestoreTargetIsFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(dst, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r := newTestRestorer(t, Options{Source: t.TempDir(), Target: filepath.Join(dst, "sub"), Layout: layout.Flat})
	if _, err := r.Restore(context.Background(), sampleEntries); !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no source", Options{Target: "t", Layout: layout.Flat}},
		{"no target", Options{Source: "s", Layout: layout.Flat}},
		{"no layout", Options{Source: "s", Target: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
