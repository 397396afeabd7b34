package report

import (
	"encoding/json"
	"fmt"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// ToJSON renders r with four-space indentation.
func ToJSON(r models.Report, opts Options) ([]byte, error) {
	data, err := json.MarshalIndent(newDocument(r, opts), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal json report: %w", err)
	}
	return data, nil
}
