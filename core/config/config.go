package config

import (
	"reflect"
	"strings"

	"prefs-manager/core/database"
	"prefs-manager/core/logger"
	"prefs-manager/core/server"
	"prefs-manager/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Prefs holds configuration for the preference resolution layer.
	Prefs PrefsConfig `mapstructure:"prefs"`
	// Providers selects and tunes the preference providers.
	Providers ProvidersConfig `mapstructure:"providers"`
}

// PrefsConfig tunes conflict resolution, caching, validation and
// encryption of the preference layer.
type PrefsConfig struct {
	// Strategy is the conflict resolution strategy
	// (highest_priority, lowest_priority, merge, override, error).
	Strategy string `mapstructure:"strategy" default:"highest_priority"`
	// CacheEnabled toggles the in-memory resolution cache.
	CacheEnabled bool `mapstructure:"cache_enabled" default:"true"`
	// CacheTTLSeconds is the cache entry lifetime in seconds.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"300"`
	// CacheMaxEntries caps the number of cached keys.
	CacheMaxEntries int `mapstructure:"cache_max_entries" default:"1000"`
	// ValidationEnabled toggles rule validation on writes.
	ValidationEnabled bool `mapstructure:"validation_enabled" default:"true"`
	// EncryptionPassphrase enables value encryption when non-empty.
	EncryptionPassphrase string `mapstructure:"encryption_passphrase" default:""`
	// AuditMaxEntries caps the in-memory audit trail.
	AuditMaxEntries int `mapstructure:"audit_max_entries" default:"1000"`
	// ReconcileSnapshotTTLSeconds is how long polled reconcile runs
	// reuse one provider snapshot. Zero snapshots fresh on every run.
	ReconcileSnapshotTTLSeconds int `mapstructure:"reconcile_snapshot_ttl_seconds" default:"30"`
}

// ProvidersConfig selects which providers are wired at startup. Each
// provider carries its own priority so deployments can reorder the
// hierarchy without code changes.
type ProvidersConfig struct {
	// Memory toggles the in-memory provider.
	Memory bool `mapstructure:"memory" default:"true"`
	// MemoryPriority is the in-memory provider priority (0-100).
	MemoryPriority int `mapstructure:"memory_priority" default:"75"`

	// File toggles the JSON file provider.
	File bool `mapstructure:"file" default:"true"`
	// FilePath is the JSON document location.
	FilePath string `mapstructure:"file_path" default:"prefs.json"`
	// FilePriority is the file provider priority.
	FilePriority int `mapstructure:"file_priority" default:"50"`

	// Env toggles the environment-variable provider.
	Env bool `mapstructure:"env" default:"true"`
	// EnvPrefix selects preference-bearing variables.
	EnvPrefix string `mapstructure:"env_prefix" default:"PREFS_"`
	// EnvPriority is the env provider priority.
	EnvPriority int `mapstructure:"env_priority" default:"25"`

	// Database toggles the MySQL provider.
	Database bool `mapstructure:"database" default:"false"`
	// DatabasePriority is the database provider priority.
	DatabasePriority int `mapstructure:"database_priority" default:"50"`

	// Object toggles the object storage provider.
	Object bool `mapstructure:"object" default:"false"`
	// ObjectPrefix is the key prefix inside the bucket.
	ObjectPrefix string `mapstructure:"object_prefix" default:"prefs"`
	// ObjectPriority is the object provider priority.
	ObjectPriority int `mapstructure:"object_priority" default:"25"`

	// Rest toggles the remote HTTP provider.
	Rest bool `mapstructure:"rest" default:"false"`
	// RestBaseURL is the remote preference service base URL.
	RestBaseURL string `mapstructure:"rest_base_url" default:""`
	// RestTimeoutSeconds bounds each remote request attempt.
	RestTimeoutSeconds int `mapstructure:"rest_timeout_seconds" default:"10"`
	// RestPriority is the rest provider priority.
	RestPriority int `mapstructure:"rest_priority" default:"0"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
