package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvCookie    = "CITENET_COOKIE"
	EnvProxy     = "CITENET_PROXY"
	EnvUserAgent = "CITENET_USER_AGENT"
	EnvDB        = "CITENET_DB"
)

// DefaultEnvFile is the dotenv file read from the current directory.
const DefaultEnvFile = ".env"

// LoadEnv returns the citenet variables from the dotenv file at path,
// overridden by the process environment. A missing file is not an error.
//
// Design decision: the file is read with godotenv.Read rather than Load so
// the process environment is never modified; secrets such as the session
// cookie stay out of child processes.
func LoadEnv(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path != "" {
		file, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		for k, v := range file {
			values[k] = v
		}
	}
	for _, k := range []string{EnvCookie, EnvProxy, EnvUserAgent, EnvDB} {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}
	return values, nil
}

// ApplyEnv overrides c with the citenet variables present in env.
func (c *Config) ApplyEnv(env map[string]string) {
	setString(&c.Cookie, env[EnvCookie])
	setString(&c.Proxy, env[EnvProxy])
	setString(&c.UserAgent, env[EnvUserAgent])
	setString(&c.DBPath, env[EnvDB])
}
