// Package config loads the immutable settings every component is built from.
package config

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-assetpipe/network/objectstore"
	"github.com/go-playground/validator/v10"
)

// Backends of the object store client.
const (
	BackendSigned = "signed"
	BackendSDK    = "sdk"
)

// Secret is a string that never prints its value.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// StoreConfig holds the object store connection.
type StoreConfig struct {
	Endpoint        string `mapstructure:"endpoint" validate:"required,url"`
	Region          string `mapstructure:"region" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
	SecretAccessKey Secret `mapstructure:"secret_access_key" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	PublicDomain    string `mapstructure:"public_domain" validate:"required,url"`
	Backend         string `mapstructure:"backend" validate:"oneof=signed sdk"`
}

// Config is passed by value; a changed setting means a new Config and new components.
type Config struct {
	Store StoreConfig `mapstructure:"store"`

	// Quality is the WebP quality factor between 0 and 1.
	Quality           float64  `mapstructure:"quality" validate:"gte=0,lte=1"`
	AttachmentsFolder string   `mapstructure:"attachments_folder" validate:"required"`
	Concurrency       int      `mapstructure:"concurrency" validate:"gte=1"`
	ProgressEvery     int      `mapstructure:"progress_every" validate:"gte=1"`
	ReportPath        string   `mapstructure:"report_path" validate:"required"`
	TrashFolder       string   `mapstructure:"trash_folder" validate:"required"`
	FetchRetries      int      `mapstructure:"fetch_retries" validate:"gte=0"`
	MaxImageBytes     int64    `mapstructure:"max_image_bytes" validate:"gte=0"`
	Include           []string `mapstructure:"include" validate:"min=1"`
	Exclude           []string `mapstructure:"exclude"`
	DryRun            bool     `mapstructure:"dry_run"`
	MetricsFile       string   `mapstructure:"metrics_file"`
}

// Validate checks everything except the store credentials, which only uploads need.
func (c Config) Validate() error {
	if err := validator.New().StructExcept(c, "Store"); err != nil {
		return fmt.Errorf("invalid configuration: %s", describe(err))
	}
	return nil
}

// ValidateStore checks the object store settings.
func (c Config) ValidateStore() error {
	if err := validator.New().Struct(c.Store); err != nil {
		return fmt.Errorf("invalid store configuration: %s", describe(err))
	}
	return nil
}

// ObjectStore converts the store settings for the object store clients.
func (c Config) ObjectStore() objectstore.Config {
	return objectstore.Config{
		Endpoint:        c.Store.Endpoint,
		Region:          c.Store.Region,
		AccessKeyID:     c.Store.AccessKeyID,
		SecretAccessKey: string(c.Store.SecretAccessKey),
		Bucket:          c.Store.Bucket,
		PublicDomain:    c.Store.PublicDomain,
	}
}

func describe(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if e.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: %s=%s", field, e.Tag(), e.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("%s: %s", field, e.Tag()))
		}
	}
	return strings.Join(messages, ", ")
}
