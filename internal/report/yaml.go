package report

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// ToYAML renders r as a YAML document with the same shape as ToJSON.
func ToYAML(r models.Report, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(r, opts)); err != nil {
		return nil, fmt.Errorf("marshal yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal yaml report: %w", err)
	}
	return buf.Bytes(), nil
}
