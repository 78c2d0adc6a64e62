// Package backup gives read access to an iTunes-style device backup
// directory, where every file is stored under the SHA-1 hash of its
// original device path instead of its name.
package backup

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// The two databases the pipeline consumes sit at fixed content-hash names.
const (
	// MessagesDBHash is SHA-1("HomeDomain-Library/SMS/sms.db").
	MessagesDBHash = "3d0d7e5fb2ce288813306e4d4636395e047a3d28"
	// ContactsDBHash is SHA-1("HomeDomain-Library/AddressBook/AddressBook.sqlitedb").
	ContactsDBHash = "31bb7ba8914766d4ba40d6dfb6113c8b614be442"
)

// Backup is an opened backup directory.
type Backup struct {
	dir string
}

// Open validates dir and the presence of the messages and contacts
// databases. Everything the pipeline needs later is addressable through the
// returned Backup.
func Open(dir string) (*Backup, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory does not exist or cannot be read: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", dir)
	}

	b := &Backup{dir: dir}
	for _, f := range []struct{ hash, what string }{
		{MessagesDBHash, "messages"},
		{ContactsDBHash, "contacts"},
	} {
		fi, err := os.Stat(b.FilePath(f.hash))
		if err != nil || !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("input directory does not contain a readable %s database (%s)", f.what, f.hash)
		}
	}
	return b, nil
}

// FilePath returns the on-disk path of the backup file stored under hash.
func (b *Backup) FilePath(hash string) string {
	return filepath.Join(b.dir, hash)
}

// HasFile reports whether the backup contains a file under hash. Attachment
// references dangle routinely after partial backups, so callers treat a
// false here as loggable, not fatal.
func (b *Backup) HasFile(hash string) bool {
	info, err := os.Stat(b.FilePath(hash))
	return err == nil && info.Mode().IsRegular()
}

// CopyFile copies the backup file stored under hash to dst verbatim.
func (b *Backup) CopyFile(hash, dst string) error {
	src, err := os.Open(b.FilePath(hash))
	if err != nil {
		return fmt.Errorf("failed to open backup file %s: %w", hash, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy backup file %s: %w", hash, err)
	}
	return out.Close()
}

// OpenMessages opens the messages database read-only.
func (b *Backup) OpenMessages() (*sqlx.DB, error) {
	db, err := b.openDB(MessagesDBHash)
	if err != nil {
		return nil, fmt.Errorf("failed to open messages database: %w", err)
	}
	return db, nil
}

// OpenContacts opens the contacts database read-only.
func (b *Backup) OpenContacts() (*sqlx.DB, error) {
	db, err := b.openDB(ContactsDBHash)
	if err != nil {
		return nil, fmt.Errorf("failed to open contacts database: %w", err)
	}
	return db, nil
}

func (b *Backup) openDB(hash string) (*sqlx.DB, error) {
	// immutable also skips journal/WAL probing, which matters because the
	// backup directory may be read-only media.
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", b.FilePath(hash))
	return sqlx.Connect("sqlite", dsn)
}

// HashedName returns the content-hash filename the backup tool stores a
// device path under.
func HashedName(devicePath string) string {
	sum := sha1.Sum([]byte(devicePath))
	return hex.EncodeToString(sum[:])
}
