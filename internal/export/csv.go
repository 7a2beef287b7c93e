// Package export serializes buffer snapshots to CSV for offline analysis.
//
// Gaze and event records share one column schema; absent fields are empty
// cells. Column names follow the lab's established gaze-file layout
// (TimeStamp, Left_X, Left_Validity, ...), one row per record in arrival
// order.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

// timestampDecimals and coordDecimals fix the numeric formatting so files
// diff cleanly between exports of the same snapshot.
const (
	timestampDecimals = 6
	coordDecimals     = 6
	pupilDecimals     = 3
)

// header is the unified schema over both record kinds.
var header = []string{
	"TimeStamp", "Kind",
	"Left_X", "Left_Y", "Left_Validity", "Left_Pupil",
	"Right_X", "Right_Y", "Right_Validity", "Right_Pupil",
	"Event", "Payload",
}

// Exporter writes snapshots as CSV.
type Exporter struct {
	log logger.Logger
}

// New creates an exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		log: logger.Get().Named("export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write streams the snapshot to w: a header row, then one row per record.
func (e *Exporter) Write(records []model.Record, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		metrics.RecordExportError()
		return fmt.Errorf("%w: header: %v", ErrWrite, err)
	}

	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			metrics.RecordExportError()
			return fmt.Errorf("%w: record %d: %v", ErrWrite, r.Seq, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		metrics.RecordExportError()
		return fmt.Errorf("%w: flush: %v", ErrWrite, err)
	}

	metrics.RecordExportRows(len(records))
	return nil
}

// WriteFile exports to path, truncating any previous content so exporting
// the same snapshot twice yields the same file.
func (e *Exporter) WriteFile(records []model.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		metrics.RecordExportError()
		return fmt.Errorf("%w: create %s: %v", ErrWrite, path, err)
	}

	werr := e.Write(records, f)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		metrics.RecordExportError()
		return fmt.Errorf("%w: close %s: %v", ErrWrite, path, cerr)
	}
	return nil
}

// row renders one record against the unified schema.
func row(r model.Record) []string {
	cells := make([]string, len(header))
	cells[0] = formatFloat(r.Timestamp(), timestampDecimals)

	switch r.Kind {
	case model.KindGaze:
		cells[1] = "gaze"
		fillEye(cells, 2, r.Gaze.Left)
		fillEye(cells, 6, r.Gaze.Right)
	case model.KindEvent:
		cells[1] = "event"
		cells[10] = r.Event.Label
		if len(r.Event.Payload) > 0 {
			if data, err := json.Marshal(r.Event.Payload); err == nil {
				cells[11] = string(data)
			}
		}
	}
	return cells
}

func fillEye(cells []string, at int, eye model.EyeSample) {
	if eye.Valid {
		cells[at] = formatFloat(eye.GazePoint.X, coordDecimals)
		cells[at+1] = formatFloat(eye.GazePoint.Y, coordDecimals)
		cells[at+2] = "1"
	} else {
		cells[at+2] = "0"
	}
	if eye.PupilValid {
		cells[at+3] = formatFloat(eye.PupilDiameter, pupilDecimals)
	}
}

// formatFloat renders a fixed-decimal value; NaN becomes an empty cell.
func formatFloat(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Header returns the unified column schema, for readers and tests.
func Header() []string {
	return append([]string(nil), header...)
}
