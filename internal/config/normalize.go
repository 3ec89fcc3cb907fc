package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	if err := c.normalizeQiime(); err != nil {
		return err
	}
	c.normalizeNotifications()
	if err := c.normalizeActions(); err != nil {
		return err
	}
	c.QiimeParams.DemuxParams.Params.DemuxMethod = strings.ToLower(strings.TrimSpace(c.QiimeParams.DemuxParams.Params.DemuxMethod))
	if c.QiimeParams.DemuxParams.Params.DemuxMethod == "" {
		c.QiimeParams.DemuxParams.Params.DemuxMethod = defaultDemuxMethod
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			level = strings.ToLower(strings.TrimSpace(level))
			if stage == "" || level == "" {
				continue
			}
			overrides[stage] = level
		}
		c.Logging.StageOverrides = overrides
	}
}

func (c *Config) normalizeQiime() error {
	c.Qiime.Binary = strings.TrimSpace(c.Qiime.Binary)
	if c.Qiime.Binary == "" {
		if value, ok := os.LookupEnv("AMPLIFLOW_QIIME_BINARY"); ok && strings.TrimSpace(value) != "" {
			c.Qiime.Binary = strings.TrimSpace(value)
		} else {
			c.Qiime.Binary = defaultQiimeBinary
		}
	}
	if strings.TrimSpace(c.Qiime.TmpDir) != "" {
		var err error
		if c.Qiime.TmpDir, err = expandPath(c.Qiime.TmpDir); err != nil {
			return fmt.Errorf("qiime.tmp_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("AMPLIFLOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeActions() error {
	if len(c.Actions) == 0 {
		return nil
	}
	normalized := make(map[string]Action, len(c.Actions))
	for name, action := range c.Actions {
		key := strings.TrimSpace(name)
		data, err := normalizeData(action.Data)
		if err != nil {
			return fmt.Errorf("actions.%s.data.%w", key, err)
		}
		action.Data = data
		normalized[key] = action
	}
	c.Actions = normalized
	return nil
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }

func (e *fieldError) Unwrap() error { return e.err }

func normalizeData(d Data) (Data, error) {
	var err error
	if d.DataSource, err = expandPath(strings.TrimSpace(d.DataSource)); err != nil {
		return d, &fieldError{field: "data_source", err: err}
	}
	d.DataURL = strings.TrimSpace(d.DataURL)
	d.MetadataURL = strings.TrimSpace(d.MetadataURL)
	d.ClassifierURL = strings.TrimSpace(d.ClassifierURL)
	d.QzaSequences = strings.TrimSpace(d.QzaSequences)
	d.Metadata = strings.TrimSpace(d.Metadata)
	d.Classifier = strings.TrimSpace(d.Classifier)

	// Downloads land where the pipeline reads its inputs unless told otherwise.
	if strings.TrimSpace(d.DataPath) == "" {
		d.DataPath = d.SequencesPath()
	}
	if strings.TrimSpace(d.MetadataPath) == "" {
		d.MetadataPath = d.SampleMetadataPath()
	}
	if strings.TrimSpace(d.ClassifierPath) == "" {
		d.ClassifierPath = d.ClassifierArtifactPath()
	}
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"data_path", &d.DataPath},
		{"metadata_path", &d.MetadataPath},
		{"classifier_path", &d.ClassifierPath},
	} {
		if *field.value == "" {
			continue
		}
		if *field.value, err = expandPath(strings.TrimSpace(*field.value)); err != nil {
			return d, &fieldError{field: field.name, err: err}
		}
	}

	if strings.TrimSpace(d.OutputDir) == "" && d.DataSource != "" {
		d.OutputDir = filepath.Join(d.DataSource, defaultOutputDirName)
	}
	if d.OutputDir != "" {
		if d.OutputDir, err = expandPath(strings.TrimSpace(d.OutputDir)); err != nil {
			return d, &fieldError{field: "output_dir", err: err}
		}
	}
	d.BarcodeColumn = strings.TrimSpace(d.BarcodeColumn)
	if d.BarcodeColumn == "" {
		d.BarcodeColumn = defaultBarcodeColumn
	}
	d.GroupingField = strings.TrimSpace(d.GroupingField)
	if d.GroupingField == "" {
		d.GroupingField = defaultGroupingField
	}
	return d, nil
}
