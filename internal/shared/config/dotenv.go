package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads KEY=VALUE pairs from ENV_FILE, when set, and then from
// the given defaults. Variables already present in the environment win, so
// the first file to define a key decides its value. Missing files are skipped.
func loadEnvFiles(defaults ...string) []string {
	paths := defaults
	if explicit := strings.TrimSpace(os.Getenv("ENV_FILE")); explicit != "" {
		paths = append([]string{explicit}, defaults...)
	}
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: skip %s: %v", path, err)
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}
