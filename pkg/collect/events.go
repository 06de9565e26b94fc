package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/afero"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// EventsFile is the file the events of namespace are written to inside folder.
func EventsFile(folder, namespace string) string {
	return filepath.Join(folder, namespace+"-events.log")
}

// RecordEvents writes every event of the project as a table to <folder>/<namespace>-events.log.
func RecordEvents(ctx context.Context, fs afero.Fs, folder string, p *project.Project) error {
	events, err := p.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events of %s: %w", p.Name, err)
	}

	table := uitable.New()
	table.MaxColWidth = 120
	table.AddRow("LAST SEEN", "FIRST SEEN", "COUNT", "NAME", "KIND", "SUBOBJECT", "TYPE", "REASON", "SOURCE", "MESSAGE")
	for _, e := range events {
		table.AddRow(
			timestamp(e.LastTimestamp),
			timestamp(e.FirstTimestamp),
			e.Count,
			e.InvolvedObject.Name,
			e.InvolvedObject.Kind,
			e.InvolvedObject.FieldPath,
			e.Type,
			e.Reason,
			source(e.Source),
			e.Message,
		)
	}

	if err := fs.MkdirAll(folder, 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, EventsFile(folder, p.Name), []byte(table.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write events of %s: %w", p.Name, err)
	}
	p.Logger.Debugf("recorded %d events", len(events))
	return nil
}

func timestamp(t metav1.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	return t.UTC().Format(time.RFC3339)
}

func source(s corev1.EventSource) string {
	if s.Host == "" {
		return s.Component
	}
	return s.Component + ", " + s.Host
}
