package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type taskFile struct {
	Tasks []Parameters `yaml:"tasks"`
}

// Parse decodes a task-list document. Entries that fail validation are
// dropped from the returned list; their errors come back alongside so
// the caller can log each skipped entry and keep going.
func Parse(data []byte) ([]Task, []error) {
	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{fmt.Errorf("decode task list: %w", err)}
	}
	tasks := make([]Task, 0, len(doc.Tasks))
	var bad []error
	for i, p := range doc.Tasks {
		t, err := New(p)
		if err != nil {
			bad = append(bad, fmt.Errorf("task %d: %w", i+1, err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, bad
}

// Load reads and parses the YAML task list at path.
func Load(path string) ([]Task, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read task list: %w", err)
	}
	tasks, bad := Parse(data)
	return tasks, bad, nil
}
