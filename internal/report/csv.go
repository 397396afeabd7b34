package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

var (
	basicColumns    = []string{"pid", "name", "user", "cpu_percent", "memory_megabyte"}
	advancedColumns = []string{"pid", "name", "user", "cpu_percent", "memory_megabyte", "status", "accessible", "error"}
)

// ToCSV renders one row per process. The header follows the rendered record
// fields. An empty process list is an error.
func ToCSV(r models.Report, opts Options) ([]byte, error) {
	if len(r.Processes) == 0 {
		return nil, ErrNoData
	}

	columns := basicColumns
	if opts.Advanced {
		columns = advancedColumns
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range r.Processes {
		row := []string{
			strconv.Itoa(p.PID),
			p.Name,
			p.User,
			formatFloat(p.CPUPercent),
			formatFloat(p.MemoryMegabyte),
		}
		if opts.Advanced {
			row = append(row, p.Status, strconv.FormatBool(p.Accessible), p.Error)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
