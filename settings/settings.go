// Package settings parses the upload configuration supplied by the host
// application through an environment repository.
package settings

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
)

// Service names recognized by the orchestrator, in default preference order.
var KnownServices = []string{"gofile", "catbox", "litterbox", "s3", "custom"}

var allowedMethods = []string{"POST", "PUT", "PATCH"}
var allowedEncodings = []string{"multipart", "binary"}
var allowedShapes = []string{"json", "text"}
var allowedExpiries = []string{"1h", "12h", "24h", "72h"}

// Config is the recognized settings surface. Unset variables keep the listed
// defaults.
type Config struct {
	// Service is the user's primary upload service.
	Service string `env:"upload_service"`
	// FallbackEnabled allows automatic fallback to other services on failure.
	FallbackEnabled bool `env:"upload_fallback_enabled"`
	// RequestTimeout bounds one service attempt end to end.
	RequestTimeout time.Duration `env:"upload_request_timeout"`
	// RetryGraceWindow bounds the wait for in-flight background retries after
	// every sequential attempt has failed.
	RetryGraceWindow time.Duration `env:"upload_retry_grace_window"`
	Verbose          bool          `env:"upload_verbose"`

	GofileToken     Secret `env:"gofile_account_token"`
	CatboxUserHash  Secret `env:"catbox_userhash"`
	LitterboxExpiry string `env:"litterbox_expiry"`

	S3AccessKeyID     Secret `env:"s3_access_key_id"`
	S3SecretAccessKey Secret `env:"s3_secret_access_key"`
	S3Region          string `env:"s3_region"`
	S3Bucket          string `env:"s3_bucket"`
	// S3Endpoint overrides the AWS endpoint for S3-compatible stores
	// (MinIO, R2).
	S3Endpoint string `env:"s3_endpoint"`
	// S3PublicBaseURL is the public prefix the object key is appended to when
	// building the shareable URL.
	S3PublicBaseURL string `env:"s3_public_base_url"`

	CustomEndpointURL   string `env:"custom_endpoint_url"`
	CustomMethod        string `env:"custom_method"`
	CustomBodyEncoding  string `env:"custom_body_encoding"`
	CustomResponseShape string `env:"custom_response_shape"`
	CustomResponsePath  string `env:"custom_response_path"`
	CustomFileField     string `env:"custom_file_field"`
	// CustomExtraFields is a newline-separated list of `name=value` form
	// fields sent alongside the file part.
	CustomExtraFields string `env:"custom_extra_fields"`
	// CustomExtraHeaders is a newline-separated list of `Name: value` request
	// headers. A fixed deny-list is applied before sending.
	CustomExtraHeaders string `env:"custom_extra_headers"`
}

// Field is one ordered form field of a custom service definition.
type Field struct {
	Name  string
	Value string
}

// CustomService is the validated user-defined endpoint definition.
type CustomService struct {
	EndpointURL   string
	Method        string
	BodyEncoding  string
	ResponseShape string
	ResponsePath  string
	FileField     string
	ExtraFields   []Field
	ExtraHeaders  map[string]string
}

// Parse reads the configuration from the repository and validates it.
func Parse(repository env.Repository) (Config, error) {
	config := Config{
		Service:             "gofile",
		FallbackEnabled:     true,
		RequestTimeout:      5 * time.Minute,
		RetryGraceWindow:    30 * time.Second,
		LitterboxExpiry:     "1h",
		CustomMethod:        "POST",
		CustomBodyEncoding:  "multipart",
		CustomResponseShape: "json",
		CustomFileField:     "file",
	}
	if err := parseEnv(&config, repository); err != nil {
		return Config{}, err
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	if !contains(KnownServices, c.Service) {
		return fmt.Errorf("unknown upload service %q, available: %s", c.Service, strings.Join(KnownServices, ", "))
	}
	if !contains(allowedExpiries, c.LitterboxExpiry) {
		return fmt.Errorf("invalid litterbox expiry %q, available: %s", c.LitterboxExpiry, strings.Join(allowedExpiries, ", "))
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Service == "custom" {
		if _, err := c.Custom(); err != nil {
			return err
		}
	}
	return nil
}

// Custom builds and validates the custom service definition. An invalid
// definition is a precondition error: it fails before any network attempt.
func (c Config) Custom() (CustomService, error) {
	parsed, err := url.Parse(c.CustomEndpointURL)
	if err != nil {
		return CustomService{}, fmt.Errorf("invalid custom endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return CustomService{}, fmt.Errorf("custom endpoint URL must use http or https, got %q", c.CustomEndpointURL)
	}
	if parsed.Host == "" {
		return CustomService{}, fmt.Errorf("custom endpoint URL has no host: %q", c.CustomEndpointURL)
	}

	method := strings.ToUpper(c.CustomMethod)
	if !contains(allowedMethods, method) {
		return CustomService{}, fmt.Errorf("invalid custom method %q, available: %s", c.CustomMethod, strings.Join(allowedMethods, ", "))
	}
	if !contains(allowedEncodings, c.CustomBodyEncoding) {
		return CustomService{}, fmt.Errorf("invalid custom body encoding %q, available: %s", c.CustomBodyEncoding, strings.Join(allowedEncodings, ", "))
	}
	if !contains(allowedShapes, c.CustomResponseShape) {
		return CustomService{}, fmt.Errorf("invalid custom response shape %q, available: %s", c.CustomResponseShape, strings.Join(allowedShapes, ", "))
	}

	fields, err := parseFieldLines(c.CustomExtraFields, "=")
	if err != nil {
		return CustomService{}, fmt.Errorf("invalid custom extra fields: %w", err)
	}
	headerFields, err := parseFieldLines(c.CustomExtraHeaders, ":")
	if err != nil {
		return CustomService{}, fmt.Errorf("invalid custom extra headers: %w", err)
	}
	headers := map[string]string{}
	for _, field := range headerFields {
		headers[field.Name] = field.Value
	}

	return CustomService{
		EndpointURL:   c.CustomEndpointURL,
		Method:        method,
		BodyEncoding:  c.CustomBodyEncoding,
		ResponseShape: c.CustomResponseShape,
		ResponsePath:  c.CustomResponsePath,
		FileField:     c.CustomFileField,
		ExtraFields:   fields,
		ExtraHeaders:  headers,
	}, nil
}

// parseFieldLines splits a newline-separated list of name/value pairs joined
// by separator, preserving declaration order.
func parseFieldLines(raw, separator string) ([]Field, error) {
	var fields []Field
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, separator, 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("line %q is not in name%svalue form", line, separator)
		}
		fields = append(fields, Field{
			Name:  strings.TrimSpace(parts[0]),
			Value: strings.TrimSpace(parts[1]),
		})
	}
	return fields, nil
}
