package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type kind int

const (
	kString kind = iota
	kInt
	kBool
	kFloat
	kDuration
	kList
	kUint
)

// envSpec binds one environment variable to a config field.
type envSpec struct {
	env   string
	typ   kind
	apply func(*Config, any)
}

var specs = []envSpec{
	{"MUDRA_ADDR", kString, func(c *Config, v any) { c.Server.Addr = v.(string) }},
	{"MUDRA_STATIC_DIR", kString, func(c *Config, v any) { c.Server.StaticDir = v.(string) }},
	{"MUDRA_API_TOKEN", kString, func(c *Config, v any) { c.Server.APIToken = v.(string) }},
	{"MUDRA_READ_TIMEOUT", kDuration, func(c *Config, v any) { c.Server.ReadTimeout = v.(time.Duration) }},
	{"MUDRA_WRITE_TIMEOUT", kDuration, func(c *Config, v any) { c.Server.WriteTimeout = v.(time.Duration) }},
	{"MUDRA_STORAGE_DRIVER", kString, func(c *Config, v any) { c.Storage.Driver = v.(string) }},
	{"MUDRA_DB_PATH", kString, func(c *Config, v any) { c.Storage.Path = v.(string) }},
	{"MUDRA_DATABASE_URL", kString, func(c *Config, v any) { c.Storage.DSN = v.(string) }},
	{"MUDRA_MODEL_PATH", kString, func(c *Config, v any) { c.Classifier.ModelPath = v.(string) }},
	{"MUDRA_MODEL_INPUT_SIZE", kInt, func(c *Config, v any) { c.Classifier.InputSize = v.(int) }},
	{"MUDRA_CLASS_LABELS", kList, func(c *Config, v any) { c.Classifier.Labels = v.([]string) }},
	{"MUDRA_CLASSIFIER_TIMEOUT", kDuration, func(c *Config, v any) { c.Classifier.Timeout = v.(time.Duration) }},
	{"MUDRA_CLASSIFIER_SEED", kUint, func(c *Config, v any) { c.Classifier.Seed = v.(uint64) }},
	{"MUDRA_DETECTOR_ENABLED", kBool, func(c *Config, v any) { c.Detector.Enabled = v.(bool) }},
	{"MUDRA_DETECTOR_SCRIPT", kString, func(c *Config, v any) { c.Detector.Script = v.(string) }},
	{"MUDRA_DETECTOR_PYTHON", kString, func(c *Config, v any) { c.Detector.Python = v.(string) }},
	{"MUDRA_DETECTOR_MIN_CONFIDENCE", kFloat, func(c *Config, v any) { c.Detector.MinConfidence = v.(float64) }},
	{"MUDRA_BULK_CONCURRENCY", kInt, func(c *Config, v any) { c.Recognizer.BulkConcurrency = v.(int) }},
	{"MUDRA_MAX_PER_PAGE", kInt, func(c *Config, v any) { c.History.MaxPerPage = v.(int) }},
	{"MUDRA_LOG_LEVEL", kString, func(c *Config, v any) { c.Log.Level = v.(string) }},
	{"MUDRA_LOG_FORMAT", kString, func(c *Config, v any) { c.Log.Format = v.(string) }},
}

// applyEnvOverrides sets every field whose variable is present. lookup is
// os.LookupEnv outside tests.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for _, s := range specs {
		raw, ok := lookup(s.env)
		if !ok || raw == "" {
			continue
		}

		var v any
		var err error
		switch s.typ {
		case kString:
			v = raw
		case kInt:
			v, err = strconv.Atoi(raw)
		case kUint:
			v, err = strconv.ParseUint(raw, 10, 64)
		case kBool:
			v, err = strconv.ParseBool(raw)
		case kFloat:
			v, err = strconv.ParseFloat(raw, 64)
		case kDuration:
			v, err = time.ParseDuration(raw)
		case kList:
			var items []string
			for _, item := range strings.Split(raw, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			v = items
		}
		if err != nil {
			return fmt.Errorf("parse %s=%q: %w", s.env, raw, err)
		}
		s.apply(cfg, v)
	}
	return nil
}
