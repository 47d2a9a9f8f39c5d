package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads a .env file when one is present, then builds the config
// from the process environment.
func LoadFromEnv() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}
	return Load(FromEnviron())
}
