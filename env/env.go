package env

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	DefaultEnvFile = ".env"
	// FileVariable points at an alternative env file, e.g. ".env.relay".
	FileVariable = "ENV_FILE"
)

// InitConfig loads the optional env file and fills every config struct from the environment.
// Variables already present in the environment win over the file.
func InitConfig(configs ...any) error {
	file := os.Getenv(FileVariable)
	if file == "" {
		file = DefaultEnvFile
	}

	// nolint:errcheck // env file is optional, failure is acceptable
	_ = godotenv.Load(file)

	if len(configs) == 0 {
		return errors.New("no config to process")
	}

	for _, c := range configs {
		if err := envconfig.Process("", c); err != nil {
			return errors.Wrapf(err, "failed to envconfig.Process %T", c)
		}
	}

	return nil
}
