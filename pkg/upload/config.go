package upload

import "time"

// Config tunes the uploader. Zero values other than MaxBytesInFlight fall
// back to DefaultConfig.
type Config struct {
	// MaxConcurrent caps light uploads running together.
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" envDefault:"4"`
	// MaxBytesInFlight caps the summed size of running uploads. A single
	// upload larger than the cap still runs, alone. Zero disables the cap.
	MaxBytesInFlight int64 `env:"UPLOAD_MAX_BYTES_IN_FLIGHT" envDefault:"268435456"`
	// Files at least this large are heavy.
	LargeFileBytes int64 `env:"UPLOAD_LARGE_FILE_BYTES" envDefault:"104857600"`
	// Images with at least this many pixels are heavy.
	LargeImagePixels int64 `env:"UPLOAD_LARGE_IMAGE_PIXELS" envDefault:"40000000"`
	// RulesFile optionally points at YAML size tiers that narrow MaxConcurrent.
	RulesFile string `env:"UPLOAD_RULES_FILE"`

	KeyPrefix string `env:"UPLOAD_KEY_PREFIX"`

	Thumbnails      bool `env:"UPLOAD_THUMBNAILS" envDefault:"false"`
	ThumbnailWidth  int  `env:"UPLOAD_THUMBNAIL_WIDTH" envDefault:"320"`
	ThumbnailHeight int  `env:"UPLOAD_THUMBNAIL_HEIGHT" envDefault:"320"`

	AdmissionTimeout time.Duration `env:"UPLOAD_ADMISSION_TIMEOUT" envDefault:"10s"`
	PolicyRetryDelay time.Duration `env:"UPLOAD_POLICY_RETRY_DELAY" envDefault:"500ms"`
	StatusTimeout    time.Duration `env:"UPLOAD_STATUS_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the values used when the environment is empty.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    4,
		MaxBytesInFlight: 256 << 20,
		LargeFileBytes:   100 << 20,
		LargeImagePixels: 40_000_000,
		ThumbnailWidth:   320,
		ThumbnailHeight:  320,
		AdmissionTimeout: 10 * time.Second,
		PolicyRetryDelay: 500 * time.Millisecond,
		StatusTimeout:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxBytesInFlight < 0 {
		c.MaxBytesInFlight = 0
	}
	if c.LargeFileBytes <= 0 {
		c.LargeFileBytes = d.LargeFileBytes
	}
	if c.LargeImagePixels <= 0 {
		c.LargeImagePixels = d.LargeImagePixels
	}
	if c.ThumbnailWidth <= 0 {
		c.ThumbnailWidth = d.ThumbnailWidth
	}
	if c.ThumbnailHeight <= 0 {
		c.ThumbnailHeight = d.ThumbnailHeight
	}
	if c.AdmissionTimeout <= 0 {
		c.AdmissionTimeout = d.AdmissionTimeout
	}
	if c.PolicyRetryDelay <= 0 {
		c.PolicyRetryDelay = d.PolicyRetryDelay
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	return c
}
