package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
)

// Backend names accepted by --backend.
const (
	backendDir    = "dir"
	backendSQLite = "sqlite"
	backendMemory = "memory"
	backendVoid   = "void"
)

// config resolves settings from flags, BEDROCK_* environment variables and
// an optional YAML file, in that order of precedence.
type config struct {
	v    *viper.Viper
	file string
}

func newConfig() *config {
	return &config{v: viper.New()}
}

func (c *config) load(cmd *cobra.Command) error {
	if c.file != "" {
		c.v.SetConfigFile(c.file)
	} else if home, err := os.UserHomeDir(); err == nil {
		c.v.AddConfigPath(filepath.Join(home, ".config", "bedrock"))
		c.v.SetConfigType("yaml")
		c.v.SetConfigName("config")
	}

	c.v.SetEnvPrefix("BEDROCK")
	c.v.AutomaticEnv()

	dataDir := filepath.Join(".", ".bedrock")
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "bedrock")
	}
	c.v.SetDefault("data_dir", dataDir)
	c.v.SetDefault("backend", backendDir)
	c.v.SetDefault("computer", 0)
	c.v.SetDefault("log_level", "warn")

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"data_dir":  "data-dir",
		"backend":   "backend",
		"computer":  "computer",
		"log_level": "log-level",
	} {
		if err := c.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// logger builds the command's logger. Any -v flags win over log_level.
func (c *config) logger(cmd *cobra.Command) (zerolog.Logger, error) {
	if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
		return computer.NewLogger(cmd.ErrOrStderr(), computer.LevelForVerbosity(verbose)), nil
	}

	level, err := computer.LogLevelFromString(c.v.GetString("log_level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	return computer.NewLogger(cmd.ErrOrStderr(), level), nil
}

// backend opens the configured storage for one computer. The returned
// close function must be called once the backend is no longer needed.
func (c *config) backend(id int, logger zerolog.Logger) (persist.Backend, func() error, error) {
	dataDir := c.v.GetString("data_dir")
	noop := func() error { return nil }

	switch name := c.v.GetString("backend"); name {
	case backendDir:
		backend, err := persist.NewDir(filepath.Join(dataDir, "computer", strconv.Itoa(id)))
		if err != nil {
			return nil, nil, err
		}
		return backend, noop, nil

	case backendSQLite:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", dataDir, err)
		}
		store, err := persist.OpenSQLite(filepath.Join(dataDir, "computers.db"), logger)
		if err != nil {
			return nil, nil, err
		}
		return store.Computer(id), store.Close, nil

	case backendMemory:
		return persist.NewMemory(), noop, nil

	case backendVoid:
		return persist.Void{}, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

// withSession opens the configured computer, runs fn and closes the
// backend again.
func (c *config) withSession(cmd *cobra.Command, fn func(session *computer.Session) error) (err error) {
	logger, err := c.logger(cmd)
	if err != nil {
		return err
	}

	id := c.v.GetInt("computer")
	backend, closeBackend, err := c.backend(id, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeBackend(); err == nil {
			err = closeErr
		}
	}()

	session, err := computer.New(backend, computer.WithLogger(logger.With().Int("computer", id).Logger()))
	if err != nil {
		return err
	}
	return fn(session)
}
