// Package export writes a formatted report to its destination: the console,
// a local file, or an S3 object.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultFileName is written inside directory destinations.
const DefaultFileName = "processes.txt"

const s3Scheme = "s3://"

// Common errors
var (
	ErrEmptyDestination = errors.New("empty destination")
	ErrIsDirectory      = errors.New("destination is a directory")
)

// Destination receives one rendered report.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// Resolve maps a destination string to a Destination. An empty string means
// the console, "s3://bucket/key" an S3 object, anything else a local path.
func Resolve(dest string, stdout io.Writer, s3opts S3Options) (Destination, error) {
	dest = strings.TrimSpace(dest)
	switch {
	case dest == "":
		return NewConsole(stdout), nil
	case IsS3(dest):
		bucket, key, err := ParseS3URL(dest)
		if err != nil {
			return nil, err
		}
		return NewS3(bucket, key, s3opts), nil
	default:
		path, err := PrepareLocal(dest)
		if err != nil {
			return nil, err
		}
		return NewLocalFile(path), nil
	}
}

// Console writes the report to a stream, normally stdout.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Write(_ context.Context, data []byte) error {
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := io.WriteString(c.w, "\n")
		return err
	}
	return nil
}

func (c *Console) String() string {
	return "console"
}
