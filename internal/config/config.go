package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKWORM"

var Opts *Options

// GetConfig returns the default options with the data directory resolved.
func GetConfig() (*Options, error) {
	GetDefaultOptions()

	dataDir, err := checkDataDir(Opts.Data)
	if err != nil {
		return nil, err
	}
	Opts.Data = dataDir
	derivePaths(Opts, nil)

	return Opts, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err == nil {
		return dataDir, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}

	err := os.MkdirAll(dataDir, 0755)
	if err == nil {
		return dataDir, nil
	}
	if !errors.Is(err, os.ErrPermission) || dataDir != defaultData {
		return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
	}

	// Permission denied on the default location, fall back to the user's home directory
	currentUser, err := user.Current()
	if err != nil {
		return "", errors.Wrap(err, "unable to get current user")
	}
	if currentUser.HomeDir == "" {
		return "", errors.New("unable to get home directory")
	}
	homeData := filepath.Join(currentUser.HomeDir, ".bookworm")
	if err := os.MkdirAll(homeData, 0755); err != nil {
		return "", errors.Wrapf(err, "unable to create data folder %s", homeData)
	}
	fmt.Fprintf(os.Stderr, "Permission denied on %s, using %s\n", dataDir, homeData)
	return homeData, nil
}

// ParseFile loads options from a config file on top of the defaults. Keys may
// also be supplied through BOOKWORM_* environment variables.
func ParseFile(file string) (*Options, error) {
	if _, err := os.Stat(file); err != nil {
		return nil, errors.Wrapf(err, "unable to access config file %s", file)
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", file)
	}

	opts := GetDefaultOptions()
	if err := v.Unmarshal(opts); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	derivePaths(opts, v)
	Opts = opts
	return Opts, nil
}

// derivePaths places the database, search root and lock file under the data
// directory unless they were configured explicitly.
func derivePaths(opts *Options, v *viper.Viper) {
	isSet := func(key string) bool {
		return v != nil && v.IsSet(key)
	}
	if !isSet("dsn_uri") {
		opts.DSN = filepath.Join(opts.Data, "bookworm.db")
	}
	if !isSet("search_root") {
		opts.SearchRoot = filepath.Join(opts.Data, "search")
	}
	if !isSet("lock_file") {
		opts.LockFile = filepath.Join(opts.Data, "reindex.lock")
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = defaultSearchPageSize
	}
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = defaultWorkerPoolSize
	}
}

// CheckStorageAdapter reports whether the configured storage adapter is known.
func CheckStorageAdapter(name string) bool {
	switch name {
	case "local", "s3":
		return true
	}
	return false
}
