package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvDBDriver      = "ORATOR_DB_DRIVER"
	EnvDBDSN         = "ORATOR_DB_DSN"
	EnvAddr          = "ORATOR_ADDR"
	EnvMode          = "ORATOR_ENV"
	EnvLogLevel      = "ORATOR_LOG_LEVEL"
	EnvProvider      = "ORATOR_TRANSCRIBE_PROVIDER"
	EnvAssemblyAIKey = "ASSEMBLYAI_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and variables that are already set
// win over file values.
func LoadDotEnv(paths ...string) error {
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		present = append(present, p)
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides file values with non-empty environment variables.
// lookup is usually os.LookupEnv.
func (c *FileConfig) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(name string, target **string) {
		if v, ok := lookup(name); ok && v != "" {
			*target = &v
		}
	}
	set(EnvDBDriver, &c.DB.Driver)
	set(EnvDBDSN, &c.DB.DSN)
	set(EnvAddr, &c.Server.Addr)
	set(EnvMode, &c.Server.Env)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvProvider, &c.Transcribe.Provider)
	set(EnvAssemblyAIKey, &c.Transcribe.AssemblyAIKey)
	set(EnvOpenAIKey, &c.Transcribe.OpenAIKey)
}
