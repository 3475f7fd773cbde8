package config

const (
	defaultLogFile           = "bookworm.log"
	defaultLogLevel          = "info"
	defaultLogFileMaxSize    = 20
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 28
	defaultLogCompress       = false
	defaultData              = "/var/opt/bookworm"
	defaultDSN               = defaultData + "/bookworm.db"
	defaultSearchRoot        = defaultData + "/search"
	defaultLockFile          = defaultData + "/reindex.lock"
	defaultSearchPageSize    = 10
	defaultFragmentWords     = 10
	defaultLanguage          = "en"
	defaultWorkerPoolSize    = 4
	defaultMaxUploadSize     = 100
	defaultStorageAdapter    = "local"
	defaultValidatorTimeout  = 30
	defaultValidatorRate     = 1
)

// Options mirrors the config file. Fields use mapstructure tags because viper
// decodes through mapstructure and ignores json tags.
type Options struct {
	// LogFile is the file to write logs to
	LogFile string `mapstructure:"log_file"`
	// LogLevel is the level of logging to show
	LogLevel string `mapstructure:"log_level"`
	// LogFileMaxSize is the maximum size in MiB of the log file before it is rotated
	LogFileMaxSize int `mapstructure:"log_file_max_size"`
	// LogFileMaxBackups is the maximum number of log files to keep
	LogFileMaxBackups int `mapstructure:"log_file_max_backups"`
	// LogFileMaxAge is the maximum number of days to keep a log file
	LogFileMaxAge int `mapstructure:"log_file_max_age"`
	// LogCompress is whether or not to compress the log files
	LogCompress bool `mapstructure:"log_compress"`

	// Data is the directory to store data
	Data string `mapstructure:"data"`
	// DSN is the archive record database (sqlite)
	DSN string `mapstructure:"dsn_uri"`

	// SearchRoot holds one index directory per user and per book
	SearchRoot     string `mapstructure:"search_root"`
	SearchPageSize int    `mapstructure:"search_page_size"`
	FragmentWords  int    `mapstructure:"fragment_words"`
	// DefaultLanguage is used when an archive declares no language
	DefaultLanguage string `mapstructure:"default_language"`

	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	// LockFile guards the batch reindex job against concurrent runs
	LockFile string `mapstructure:"lock_file"`
	// MaxUploadSize is the maximum size of an archive, in MiB
	MaxUploadSize int64 `mapstructure:"max_upload_size"`

	// StorageAdapter is either "local" or "s3"
	StorageAdapter    string `mapstructure:"storage_adapter"`
	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3Region          string `mapstructure:"s3_region"`
	S3Bucket          string `mapstructure:"s3_bucket"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`

	// ValidatorURL is the remote EPUB validation endpoint, empty disables it
	ValidatorURL string `mapstructure:"validator_url"`
	// ValidatorTimeout is in seconds
	ValidatorTimeout int `mapstructure:"validator_timeout"`
	// ValidatorRate is the maximum number of validation requests per second
	ValidatorRate float64 `mapstructure:"validator_rate"`
}

func GetDefaultOptions() *Options {
	Opts = &Options{
		LogFile:           defaultLogFile,
		LogLevel:          defaultLogLevel,
		LogFileMaxSize:    defaultLogFileMaxSize,
		LogFileMaxBackups: defaultLogFileMaxBackups,
		LogFileMaxAge:     defaultLogFileMaxAge,
		LogCompress:       defaultLogCompress,
		Data:              defaultData,
		DSN:               defaultDSN,
		SearchRoot:        defaultSearchRoot,
		SearchPageSize:    defaultSearchPageSize,
		FragmentWords:     defaultFragmentWords,
		DefaultLanguage:   defaultLanguage,
		WorkerPoolSize:    defaultWorkerPoolSize,
		LockFile:          defaultLockFile,
		MaxUploadSize:     defaultMaxUploadSize,
		StorageAdapter:    defaultStorageAdapter,
		ValidatorTimeout:  defaultValidatorTimeout,
		ValidatorRate:     defaultValidatorRate,
	}
	return Opts
}
