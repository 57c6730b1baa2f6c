package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bitrise-io/go-assetpipe/report"
	"github.com/bitrise-io/go-assetpipe/vault"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix of every environment variable, e.g. ASSETPIPE_STORE_BUCKET.
const EnvPrefix = "ASSETPIPE"

// LoadOptions ...
type LoadOptions struct {
	// ConfigFile is an optional YAML, TOML or JSON file.
	ConfigFile string
	// EnvFile is an optional dotenv file. Its values lose to the real environment.
	EnvFile string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Region:  "auto",
			Backend: BackendSigned,
		},
		Quality:           0.8,
		AttachmentsFolder: "attachments",
		Concurrency:       5,
		ProgressEvery:     10,
		ReportPath:        report.DefaultPath,
		TrashFolder:       vault.DefaultTrashFolder,
		Include:           []string{"**/*.md"},
		Exclude:           vault.DefaultExclude,
	}
}

// Load merges defaults, the config file, the dotenv file and the environment, in increasing
// precedence, and validates the result.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return Config{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		applyEnvFile(v, values)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.endpoint", d.Store.Endpoint)
	v.SetDefault("store.region", d.Store.Region)
	v.SetDefault("store.access_key_id", d.Store.AccessKeyID)
	v.SetDefault("store.secret_access_key", string(d.Store.SecretAccessKey))
	v.SetDefault("store.bucket", d.Store.Bucket)
	v.SetDefault("store.public_domain", d.Store.PublicDomain)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("quality", d.Quality)
	v.SetDefault("attachments_folder", d.AttachmentsFolder)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("progress_every", d.ProgressEvery)
	v.SetDefault("report_path", d.ReportPath)
	v.SetDefault("trash_folder", d.TrashFolder)
	v.SetDefault("fetch_retries", d.FetchRetries)
	v.SetDefault("max_image_bytes", d.MaxImageBytes)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("metrics_file", d.MetricsFile)
}

// applyEnvFile sets every known key found in the dotenv values, unless the same variable is
// present in the process environment.
func applyEnvFile(v *viper.Viper, values map[string]string) {
	for _, key := range v.AllKeys() {
		name := EnvName(key)
		value, ok := values[name]
		if !ok {
			continue
		}
		if _, inEnv := os.LookupEnv(name); inEnv {
			continue
		}
		v.Set(key, value)
	}
}

// EnvName returns the environment variable of a configuration key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
