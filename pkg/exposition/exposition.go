// Package exposition renders metric snapshots in the Prometheus text
// exposition format (text/plain; version=0.0.4).
//
// Rendering is a pure function of the snapshot: the same snapshot always
// yields byte-identical output. Families appear in registration order,
// series in first-seen order, and labels in their declared order.
package exposition

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/common/expfmt"

	"github.com/avairebot/metricsd/pkg/metrics"
)

// ContentType is the Content-Type of RenderText output.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// RenderText renders the snapshot in the text exposition format.
func RenderText(snap metrics.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteText(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteText writes the snapshot in the text exposition format to w.
func WriteText(w io.Writer, snap metrics.Snapshot) error {
	for _, f := range snap.Families {
		if err := writeFamily(w, f); err != nil {
			return fmt.Errorf("render %s: %w", f.Name, err)
		}
	}
	return nil
}

// writeFamily writes a single metric family.
// The text encoder refuses families without series, so a labeled metric
// nobody has touched yet gets its HELP and TYPE lines written here.
func writeFamily(w io.Writer, f metrics.Family) error {
	if len(f.Series) > 0 {
		_, err := expfmt.MetricFamilyToText(w, f.Proto())
		return err
	}

	if f.Help != "" {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n", f.Name, escapeHelp(f.Help)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "# TYPE %s %s\n", f.Name, f.Type)
	return err
}

// escapeHelp escapes help text for Prometheus format.
func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
