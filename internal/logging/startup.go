package logging

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource kinds, used as keys under "resources" in the startup event.
const (
	kindS3     = "s3Buckets"
	kindGCS    = "gcsBuckets"
	kindDynamo = "dynamoTables"
	kindSSM    = "ssmParams"
)

// StartupLogger collects process identity, configuration, resources, and
// feature flags, then emits a single structured zerolog event summarising
// the startup state. Under Lambda the runtime identity is included.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	// resources maps kind -> label -> resource name.
	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given process name
// (e.g. "catalog-server").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: make(map[string]map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked in at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked in at build time.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

func (s *StartupLogger) resource(kind, label, name string) *StartupLogger {
	m, ok := s.resources[kind]
	if !ok {
		m = make(map[string]string)
		s.resources[kind] = m
	}
	m[label] = name
	return s
}

// S3Bucket registers an S3 bucket used by this process.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	return s.resource(kindS3, label, name)
}

// GCSBucket registers a Cloud Storage bucket used by this process.
func (s *StartupLogger) GCSBucket(label, name string) *StartupLogger {
	return s.resource(kindGCS, label, name)
}

// DynamoTable registers a DynamoDB table used by this process.
func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.resource(kindDynamo, label, name)
}

// SSMParam registers an SSM parameter path. Only the path is logged, never
// the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource(kindSSM, label, path)
}

// Feature registers a boolean feature flag (e.g. "dryRun", "lambda").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if it is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits one INFO event with everything collected so far.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("process", s.identity())

	if len(s.resources) > 0 {
		res := zerolog.Dict()
		for _, kind := range slices.Sorted(maps.Keys(s.resources)) {
			res = res.Dict(kind, strDict(s.resources[kind]))
		}
		evt = evt.Dict("resources", res)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range slices.Sorted(maps.Keys(s.features)) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", strDict(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		evt.Msg("Lambda cold start complete")
		return
	}
	evt.Msg("Startup complete")
}

// identity is auto-collected from the build and runtime environment. Lambda
// variables are empty when running elsewhere and are then omitted.
func (s *StartupLogger) identity() *zerolog.Event {
	d := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)
	for field, env := range map[string]string{
		"functionName": "AWS_LAMBDA_FUNCTION_NAME",
		"version":      "AWS_LAMBDA_FUNCTION_VERSION",
		"region":       "AWS_REGION",
		"memoryMB":     "AWS_LAMBDA_FUNCTION_MEMORY_SIZE",
		"logGroup":     "AWS_LAMBDA_LOG_GROUP_NAME",
		"runtime":      "AWS_EXECUTION_ENV",
		"logLevel":     LevelEnv,
	} {
		if v := os.Getenv(env); v != "" {
			d = d.Str(field, v)
		}
	}
	if s.commitHash != "" {
		d = d.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		d = d.Str("buildTime", s.buildTime)
	}
	return d
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d = d.Str(k, m[k])
	}
	return d
}
