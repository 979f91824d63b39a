package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Credential keys required before any backup-engine invocation.
const (
	EnvRepository = "RESTIC_REPOSITORY"
	EnvPassword   = "RESTIC_PASSWORD"
	EnvAccountID  = "B2_ACCOUNT_ID"
	EnvAccountKey = "B2_ACCOUNT_KEY"
)

// Credentials holds the repository location and the secrets the backup
// engine and the object-storage CLI need.
type Credentials struct {
	Repository string
	Password   string
	AccountID  string
	AccountKey string
}

// Validate reports every missing required value at once. Absence is a
// fatal configuration error, never a retry condition.
func (c *Credentials) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		EnvRepository: c.Repository,
		EnvPassword:   c.Password,
		EnvAccountID:  c.AccountID,
		EnvAccountKey: c.AccountKey,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Environ returns the process environment extended with the credential
// variables, suitable for exec'ing the backup engine.
func (c *Credentials) Environ() []string {
	return append(os.Environ(),
		EnvRepository+"="+c.Repository,
		EnvPassword+"="+c.Password,
		EnvAccountID+"="+c.AccountID,
		EnvAccountKey+"="+c.AccountKey,
	)
}

// ReadEnvFile parses a KEY=VALUE env file, skipping blank lines and
// comments. A missing file yields an empty map: credentials may instead
// live in the process environment. Values may be single- or double-quoted.
func ReadEnvFile(path string) (map[string]string, error) {
	env := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, fmt.Errorf("open env file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a KEY=VALUE line", path, lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		env[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return env, nil
}

func credentialsFrom(env map[string]string) *Credentials {
	return &Credentials{
		Repository: lookup(env, EnvRepository),
		Password:   lookup(env, EnvPassword),
		AccountID:  lookup(env, EnvAccountID),
		AccountKey: lookup(env, EnvAccountKey),
	}
}
