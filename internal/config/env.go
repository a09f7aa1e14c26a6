package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

func defaultEnvFiles() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".mcpchat.env"))
	}
	return files
}

// loadEnvFiles loads every existing file. godotenv never overrides variables
// that are already set, so earlier files win.
func loadEnvFiles(files []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}
