package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"smart-scheduler/internal/scheduler"
)

// PolicyFile is the on-disk form of the scheduling policy (YAML or JSON).
//
//	timezone: Europe/Berlin
//	excluded_weekdays: [saturday, sunday]
//	start_hour: 9
//	end_hour: 17
//	mode: inside        # or outside
//	buffer: 15m
//	horizon: 2160h
type PolicyFile struct {
	Timezone         string   `json:"timezone" yaml:"timezone"`
	ExcludedWeekdays []string `json:"excluded_weekdays" yaml:"excluded_weekdays"`
	StartHour        *int     `json:"start_hour" yaml:"start_hour"`
	EndHour          *int     `json:"end_hour" yaml:"end_hour"`
	Mode             string   `json:"mode" yaml:"mode"`
	Buffer           string   `json:"buffer" yaml:"buffer"`
	Horizon          string   `json:"horizon" yaml:"horizon"`
}

// Schedule is the resolved policy plus the run parameters that travel with it.
type Schedule struct {
	Policy  scheduler.Policy
	Buffer  time.Duration
	Horizon time.Duration
}

func DefaultSchedule() Schedule {
	return Schedule{
		Policy:  scheduler.DefaultPolicy(),
		Buffer:  scheduler.DefaultBuffer,
		Horizon: scheduler.DefaultHorizon,
	}
}

// LoadSchedule reads and validates a policy file. An empty path yields the
// defaults.
func LoadSchedule(path string) (Schedule, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSchedule(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, err
	}
	f, err := ParsePolicyFile(path, b)
	if err != nil {
		return Schedule{}, err
	}
	return f.Schedule()
}

// ParsePolicyFile decodes YAML (by extension) or JSON strictly: unknown keys
// and trailing data are errors.
func ParsePolicyFile(path string, data []byte) (PolicyFile, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return PolicyFile{}, err
	}

	var f PolicyFile
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return PolicyFile{}, fmt.Errorf("policy %s (%s): %w", filepath.Base(path), format, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return PolicyFile{}, fmt.Errorf("policy %s: trailing data", filepath.Base(path))
		}
		return PolicyFile{}, err
	}
	return f, nil
}

// Schedule resolves the file against the defaults and validates the result.
func (f PolicyFile) Schedule() (Schedule, error) {
	s := DefaultSchedule()
	p := &s.Policy

	if tz := strings.TrimSpace(f.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Schedule{}, fmt.Errorf("timezone: %w", err)
		}
		p.Location = loc
	}
	if f.ExcludedWeekdays != nil {
		p.ExcludedWeekdays = make([]time.Weekday, 0, len(f.ExcludedWeekdays))
		for _, name := range f.ExcludedWeekdays {
			d, err := scheduler.ParseWeekday(name)
			if err != nil {
				return Schedule{}, fmt.Errorf("excluded_weekdays: %w", err)
			}
			p.ExcludedWeekdays = append(p.ExcludedWeekdays, d)
		}
	}
	if f.StartHour != nil {
		p.StartHour = *f.StartHour
	}
	if f.EndHour != nil {
		p.EndHour = *f.EndHour
	}
	mode, err := scheduler.ParseWindowMode(f.Mode)
	if err != nil {
		return Schedule{}, fmt.Errorf("mode: %w", err)
	}
	p.Mode = mode

	if s.Buffer, err = ParseDurationOrDefault("buffer", f.Buffer, scheduler.DefaultBuffer); err != nil {
		return Schedule{}, err
	}
	if s.Horizon, err = ParseDurationOrDefault("horizon", f.Horizon, scheduler.DefaultHorizon); err != nil {
		return Schedule{}, err
	}
	if s.Horizon == 0 {
		return Schedule{}, fmt.Errorf("horizon: must be > 0")
	}

	if err := p.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// File renders s back into its on-disk form.
func (s Schedule) File() PolicyFile {
	start, end := s.Policy.StartHour, s.Policy.EndHour
	f := PolicyFile{
		StartHour: &start,
		EndHour:   &end,
		Mode:      string(s.Policy.Mode),
		Buffer:    s.Buffer.String(),
		Horizon:   s.Horizon.String(),
	}
	if s.Policy.Location != nil {
		f.Timezone = s.Policy.Location.String()
	}
	f.ExcludedWeekdays = make([]string, 0, len(s.Policy.ExcludedWeekdays))
	for _, d := range s.Policy.ExcludedWeekdays {
		f.ExcludedWeekdays = append(f.ExcludedWeekdays, strings.ToLower(d.String()))
	}
	return f
}

// coerceToJSONBytes converts YAML to JSON bytes so both formats share the
// strict JSON decoder.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}

	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML makes every map key a string so the value can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
