package apply

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/shelfsync/internal/calibre"
)

// backupLibrary copies the library's metadata store into the backup
// directory before the first write of the run. Returns the backup path.
func backupLibrary(backupDir string, library calibre.Library, now time.Time) (string, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupName := fmt.Sprintf("%s_metadata_%s.db", library.Name, now.Format("20060102_150405"))
	backupPath := filepath.Join(backupDir, backupName)

	if err := copyFile(library.MetadataDBPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", library.Name, err)
	}

	return backupPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
