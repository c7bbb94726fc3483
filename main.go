// Command seagliderOG1 converts Seaglider basestation dive files into an
// OceanGliders 1.0 trajectory file.
package main

import (
	"os"
)

func main() {
	if err := Root.Execute(); err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
