package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName is the name of the environment file read at startup.
const EnvFileName = ".env"

// LoadDotEnv loads dir/.env if it exists. Variables already present in
// the environment are not overridden.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadDotEnvFromCwd loads .env from the working directory.
func LoadDotEnvFromCwd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return LoadDotEnv(cwd)
}
