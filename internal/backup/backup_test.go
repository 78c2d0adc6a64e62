package backup

import (
	"os"
	"path/filepath"
	"testing"
)

// newBackupDir creates a directory with placeholder database files so Open's
// precondition checks pass.
func newBackupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, hash := range []string{MessagesDBHash, ContactsDBHash} {
		if err := os.WriteFile(filepath.Join(dir, hash), []byte("placeholder"), 0644); err != nil {
			t.Fatalf("failed to seed backup dir: %v", err)
		}
	}
	return dir
}

func TestOpenMissingDirectory(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Open should fail for a missing directory")
	}
}

func TestOpenNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := Open(file); err == nil {
		t.Error("Open should fail when input is a plain file")
	}
}

func TestOpenMissingDatabases(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err == nil {
		t.Error("Open should fail without the messages database")
	}

	if err := os.WriteFile(filepath.Join(dir, MessagesDBHash), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to seed messages db: %v", err)
	}
	if _, err := Open(dir); err == nil {
		t.Error("Open should fail without the contacts database")
	}
}

func TestOpenValid(t *testing.T) {
	dir := newBackupDir(t)
	b, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !b.HasFile(MessagesDBHash) {
		t.Error("HasFile should report the messages database present")
	}
	if b.HasFile("0000000000000000000000000000000000000000") {
		t.Error("HasFile should report an unknown hash absent")
	}
}

func TestCopyFile(t *testing.T) {
	dir := newBackupDir(t)
	hash := HashedName("MediaDomain-Library/SMS/Attachments/photo.jpg")
	content := []byte("jpeg bytes")
	if err := os.WriteFile(filepath.Join(dir, hash), content, 0644); err != nil {
		t.Fatalf("failed to seed media file: %v", err)
	}

	b, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out.jpg")
	if err := b.CopyFile(hash, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	copied, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if string(copied) != string(content) {
		t.Errorf("copied content = %q, want %q", copied, content)
	}
}

func TestHashedName(t *testing.T) {
	// Known SHA-1 vector.
	if got := HashedName("abc"); got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("HashedName(\"abc\") = %s", got)
	}
	if len(HashedName("MediaDomain-Library/x")) != 40 {
		t.Error("HashedName should return a 40-character hex digest")
	}
}
