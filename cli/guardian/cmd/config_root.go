package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/bridge"
	"github.com/alphabill-org/guardian-core/keyvaluedb/boltdb"
	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/observability"
	"github.com/alphabill-org/guardian-core/state"
)

type (
	LoggerFactory func(cfg *logger.LogConfiguration) (*slog.Logger, error)

	baseConfiguration struct {
		// The guardian home directory
		HomeDir string
		// Configuration file URL. If it's relative, then it's relative from the HomeDir.
		CfgFile string
		// Logger configuration file URL.
		LogCfgFile string
		// Accounts database file. If it's relative, then it's relative from the HomeDir.
		DBFile string
		// Base58 address of the bridge program.
		ProgramID string

		loggerBuilder LoggerFactory
		observe       *observability.Observability
	}
)

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "GUARDIAN"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default guardian directory.
	defaultGuardianDir = ".guardian"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The default accounts database file name.
	defaultDBFile = "accounts.db"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"

	flagNameDB            = "db"
	flagNameProgramID     = "program-id"
	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"
)

// unixNow returns the time bridge operations are executed at, replaced in tests.
var unixNow = func() uint32 { return uint32(time.Now().Unix()) }

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the GUARDIAN_HOME for this invocation (default is %s)", guardianHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $GUARDIAN_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().StringVar(&r.DBFile, flagNameDB, defaultDBFile, "accounts database file. Considered absolute if starts with '/'. Otherwise relative from $GUARDIAN_HOME.")
	cmd.PersistentFlags().StringVar(&r.ProgramID, flagNameProgramID, account.DefaultProgramID.String(), "base58 address of the bridge program")

	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $GUARDIAN_HOME.")
	// do not set default values for these flags as then we can easily determine whether to load the value from cfg file or not
	cmd.PersistentFlags().String(flagNameLogOutputFile, "", "log file path or one of the special values: stdout, stderr, discard")
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: DEBUG, INFO, WARN, ERROR")
	cmd.PersistentFlags().String(flagNameLogFormat, "", "log format, one of: text, json, console, ecs, cli")
}

func (r *baseConfiguration) initConfigFileLocation() {
	// Home directory and config file are used for loading in rest of the configuration,
	// handle these before other configuration is loaded with Viper.
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = guardianHomeDir()
		}
	}

	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

/*
LoggerCfgFilename always returns non-empty filename - either the value
of the flag set by user or default cfg location.
*/
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) DBFilename() string {
	if !filepath.IsAbs(r.DBFile) {
		return filepath.Join(r.HomeDir, r.DBFile)
	}
	return r.DBFile
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

func (r *baseConfiguration) initObservability(cmd *cobra.Command) error {
	log, err := r.initLogger(cmd)
	if err != nil {
		return err
	}
	r.observe = observability.New(log)
	return nil
}

/*
initLogger creates Logger based on configuration flags in "cmd".
*/
func (r *baseConfiguration) initLogger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg := &logger.LogConfiguration{}

	loggerCfgFile := filepath.Clean(r.LoggerCfgFilename())
	if f, err := os.Open(loggerCfgFile); err != nil {
		defaultLoggerCfg := filepath.Join(r.HomeDir, defaultLoggerConfigFile)
		if !(errors.Is(err, os.ErrNotExist) && loggerCfgFile == defaultLoggerCfg) {
			return nil, fmt.Errorf("opening logger configuration file: %w", err)
		}
	} else {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding logger configuration (%s): %w", loggerCfgFile, err)
		}
	}

	getFlagValueIfSet := func(flagName string, value *string) error {
		if cmd.Flags().Changed(flagName) {
			var err error
			if *value, err = cmd.Flags().GetString(flagName); err != nil {
				return fmt.Errorf("failed to read %s flag value: %w", flagName, err)
			}
		}
		return nil
	}

	// flags override values loaded from cfg file.
	// NB! these flags mustn't have default values in Cobra cmd definition!
	if err := getFlagValueIfSet(flagNameLogLevel, &cfg.Level); err != nil {
		return nil, err
	}
	if err := getFlagValueIfSet(flagNameLogFormat, &cfg.Format); err != nil {
		return nil, err
	}
	if err := getFlagValueIfSet(flagNameLogOutputFile, &cfg.OutputPath); err != nil {
		return nil, err
	}

	l, err := r.loggerBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

func (r *baseConfiguration) programID() (account.Address, error) {
	id, err := account.ParseAddress(r.ProgramID)
	if err != nil {
		return account.Address{}, fmt.Errorf("invalid program id %q: %w", r.ProgramID, err)
	}
	return id, nil
}

/*
openBridge opens the accounts database and returns bridge processor working
on it. The returned close function must be called when done with the processor.
*/
func (r *baseConfiguration) openBridge() (*bridge.Processor, func() error, error) {
	programID, err := r.programID()
	if err != nil {
		return nil, nil, err
	}
	dbFile := r.DBFilename()
	if err := os.MkdirAll(filepath.Dir(dbFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := boltdb.New(dbFile)
	if err != nil {
		return nil, nil, err
	}
	store, err := state.NewStore(db)
	if err != nil {
		return nil, nil, errors.Join(err, db.Close())
	}
	proc, err := bridge.NewProcessor(store, programID, r.observe)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("creating bridge processor: %w", err), db.Close())
	}
	return proc, db.Close, nil
}

// closeAndJoin calls "closeFn" and joins its error into "rErr".
func closeAndJoin(closeFn func() error, rErr *error) {
	if err := closeFn(); err != nil {
		*rErr = errors.Join(*rErr, fmt.Errorf("closing accounts database: %w", err))
	}
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func guardianHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultGuardianDir)
}
