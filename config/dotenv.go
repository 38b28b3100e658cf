package config

import (
	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. Variables
// already set win; a missing file is not an error.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}
