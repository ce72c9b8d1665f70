// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers = []string{"sqlite", "postgres"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors_origins", "host_cors_origins")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("security.jwt_secret", "security_jwt_secret")
	v.BindEnv("security.webhook_secret", "security_webhook_secret")
	v.BindEnv("security.rate_limit", "security_rate_limit")

	v.BindEnv("upload.workers", "upload_workers")
	v.BindEnv("upload.put_timeout", "upload_put_timeout")
	v.BindEnv("upload.max_batch_bytes", "upload_max_batch_bytes")

	v.BindEnv("aws.access_key", "aws_access_key")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")
	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.endpoint", "aws_endpoint")
	v.BindEnv("aws.public_url", "aws_public_url")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("security.rate_limit", 10)

	v.SetDefault("upload.workers", 4)
	v.SetDefault("upload.put_timeout", "60s")
	v.SetDefault("upload.max_batch_bytes", 6<<30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid db driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if v.GetString("security.jwt_secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if v.GetString("security.webhook_secret") == "" {
		return errors.New("security.webhook_secret can't be empty")
	}

	if v.GetInt("upload.workers") <= 0 {
		return errors.New("upload.workers must be bigger than 0")
	}

	if v.GetString("aws.access_key") == "" {
		return errors.New("access key can't be empty")
	}
	if v.GetString("aws.secret_access_key") == "" {
		return errors.New("secret access key can't be empty")
	}
	if v.GetString("aws.bucket") == "" {
		return errors.New("bucket can't be empty")
	}
	if v.GetString("aws.public_url") == "" {
		return errors.New("public url can't be empty")
	}

	return nil
}
