// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv, which reads .env files into the
// process environment, with github.com/caarlos0/env/v11, which parses the
// environment into structs annotated with env tags:
//
//	type Config struct {
//		Driver string `env:"STORAGE_DRIVER" envDefault:"local"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// The default .env file in the working directory is read on first use, and
// LoadEnv reads additional files. Each struct type is parsed once per
// process; Reset clears the cache, which is mostly useful in tests.
package config
