package config

import "time"

// ObservabilityConfig configures tracing and other observability features.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// SecurityConfig configures security features.
type SecurityConfig struct {
	Posture SecurityPostureConfig `yaml:"posture"`
}

// SecurityPostureConfig controls continuous security posture auditing.
type SecurityPostureConfig struct {
	Enabled            bool                   `yaml:"enabled"`
	Interval           time.Duration          `yaml:"interval"`
	IncludeFilesystem  *bool                  `yaml:"include_filesystem"`
	IncludeRuntime     *bool                  `yaml:"include_runtime"`
	IncludeConfig      *bool                  `yaml:"include_config"`
	CheckSymlinks      *bool                  `yaml:"check_symlinks"`
	AllowGroupReadable bool                   `yaml:"allow_group_readable"`
	EmitEvents         *bool                  `yaml:"emit_events"`
	AutoRemediation    SecurityRemediationCfg `yaml:"auto_remediation"`
}

// SecurityRemediationCfg configures posture remediation behavior.
type SecurityRemediationCfg struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // lockdown | warn_only
}

// ArtifactConfig configures artifact storage and retention for the
// checkpoint and patch store.
type ArtifactConfig struct {
	// Backend specifies storage backend: "local", "s3", or "minio".
	Backend string `yaml:"backend"`

	// LocalPath is the directory for local storage.
	LocalPath string `yaml:"local_path"`

	// MetadataPath is the file path for artifact metadata persistence.
	MetadataPath string `yaml:"metadata_path"`

	// MetadataBackend selects where artifact metadata is stored: "file" or "database".
	MetadataBackend string `yaml:"metadata_backend"`

	// S3Bucket is the bucket name for S3/MinIO storage.
	S3Bucket string `yaml:"s3_bucket"`

	// S3Endpoint is the endpoint URL for MinIO or S3-compatible storage.
	S3Endpoint string `yaml:"s3_endpoint"`

	// S3Region is the AWS region for S3.
	S3Region string `yaml:"s3_region"`

	// S3Prefix is an optional path prefix for all S3 objects.
	S3Prefix string `yaml:"s3_prefix"`

	// S3AccessKeyID is the AWS access key ID for S3 authentication.
	S3AccessKeyID string `yaml:"s3_access_key_id"`

	// S3SecretAccessKey is the AWS secret access key for S3 authentication.
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`

	// TTLs configures retention period by artifact type.
	TTLs map[string]time.Duration `yaml:"ttls"`

	// PruneInterval is how often to cleanup expired artifacts.
	PruneInterval time.Duration `yaml:"prune_interval"`

	// MaxStorageSize is the total quota in bytes (0 = unlimited).
	MaxStorageSize int64 `yaml:"max_storage_size"`

	// Redaction configures rules for sensitive artifacts.
	Redaction ArtifactRedactionConfig `yaml:"redaction"`
}

// ArtifactRedactionConfig controls artifact redaction behavior.
type ArtifactRedactionConfig struct {
	// Enabled toggles redaction.
	Enabled bool `yaml:"enabled"`

	// Types lists artifact types to redact (case-insensitive).
	Types []string `yaml:"types"`

	// MimeTypes lists MIME types to redact (supports wildcards like "image/*").
	MimeTypes []string `yaml:"mime_types"`

	// FilenamePatterns are regex patterns to match against filenames.
	FilenamePatterns []string `yaml:"filename_patterns"`
}
