package og1

import (
	"os"
	"path/filepath"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

// Write writes an OG1 dataset to path as NetCDF. The file is written next
// to path under a temporary name and renamed into place once complete.
func Write(path string, ds *dive.Record) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := dive.WriteFile(tmp, ds); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
