package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"smart-scheduler/internal/config"
	"smart-scheduler/internal/scheduler"
)

// Snapshot is an offline scheduling input:
//
//	start: 2024-01-08T08:00:00Z
//	policy:
//	  timezone: UTC
//	  start_hour: 9
//	  end_hour: 17
//	  buffer: 15m
//	tasks:
//	  - {id: 1, title: Design, duration_minutes: 60, priority: 1}
//	  - {id: 2, title: Build, duration_minutes: 120, priority: 2, dependencies: [1]}
//	busy:
//	  - {start: 2024-01-08T09:00:00Z, end: 2024-01-08T10:00:00Z, title: Standup}
type Snapshot struct {
	Start             time.Time                      `yaml:"start"`
	Now               time.Time                      `yaml:"now"`
	Policy            config.PolicyFile              `yaml:"policy"`
	Tasks             []scheduler.Task               `yaml:"tasks"`
	Busy              []scheduler.BusyInterval       `yaml:"busy"`
	ProjectPriorities map[scheduler.ProjectID]int    `yaml:"project_priorities"`
	Completions       map[scheduler.TaskID]time.Time `yaml:"completions"`
}

func ReadSnapshot(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return ParseSnapshot(b)
}

// ParseSnapshot decodes a single YAML document. Unknown keys are rejected.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Snapshot{}, errors.New("snapshot: empty document")
		}
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Snapshot{}, errors.New("snapshot: more than one document")
	}
	return s, nil
}

// Request resolves the embedded policy and builds the engine input.
func (s Snapshot) Request() (scheduler.Request, error) {
	sched, err := s.Policy.Schedule()
	if err != nil {
		return scheduler.Request{}, fmt.Errorf("snapshot policy: %w", err)
	}
	req := scheduler.NewRequest(s.Tasks, s.Busy, sched.Policy)
	req.Buffer = sched.Buffer
	req.Horizon = sched.Horizon
	req.Start = s.Start
	req.Now = s.Now
	if req.Now.IsZero() {
		req.Now = s.Start
	}
	req.ProjectPriorities = s.ProjectPriorities
	req.Completions = s.Completions
	return req, nil
}
