package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/OCAP2/firecontrol/pkg/core"
)

// ExportFormatVersion is bumped when the export layout changes.
const ExportFormatVersion = 1

// FireMissionLog is the root JSON structure
type FireMissionLog struct {
	Version  int               `json:"version"`
	Started  time.Time         `json:"started"`
	Missions []FireMissionJSON `json:"missions"`
}

// FireMissionJSON is one exported mission. Angles are in degrees so the
// file can be read without a unit table.
type FireMissionJSON struct {
	ID             uint      `json:"id"`
	Time           time.Time `json:"time"`
	WorldName      string    `json:"worldName,omitempty"`
	Weapon         string    `json:"weapon"`
	Range          string    `json:"range"`
	MuzzleVelocity float64   `json:"muzzleVelocity"`
	Trajectory     string    `json:"trajectory"`
	Gun            GridJSON  `json:"gun"`
	Target         GridJSON  `json:"target"`
	Distance       float64   `json:"distance"`
	BearingDeg     float64   `json:"bearingDeg"`
	AngleDeg       float64   `json:"angleDeg"`
	TimeOnTarget   float64   `json:"timeOnTarget"`
}

// GridJSON is a grid reference plus the position it resolved to.
type GridJSON struct {
	Quadrant string     `json:"quadrant"`
	Sectors  []int      `json:"sectors"`
	Position [3]float64 `json:"position"`
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func gridJSON(e core.Emplacement, p core.Position) GridJSON {
	sectors := e.Sectors
	if sectors == nil {
		sectors = []int{}
	}
	return GridJSON{
		Quadrant: e.Quadrant,
		Sectors:  sectors,
		Position: [3]float64{p.Long, p.Lat, p.Elevation},
	}
}

func (b *Backend) buildExport() FireMissionLog {
	export := FireMissionLog{
		Version:  ExportFormatVersion,
		Started:  b.started,
		Missions: make([]FireMissionJSON, 0, len(b.missions)),
	}
	for _, m := range b.missions {
		export.Missions = append(export.Missions, FireMissionJSON{
			ID:             m.ID,
			Time:           m.Time,
			WorldName:      m.WorldName,
			Weapon:         m.Weapon,
			Range:          m.Range,
			MuzzleVelocity: m.MuzzleVelocity,
			Trajectory:     m.Trajectory,
			Gun:            gridJSON(m.GunGrid, m.Gun),
			Target:         gridJSON(m.TargetGrid, m.Target),
			Distance:       m.Solution.Distance,
			BearingDeg:     toDegrees(m.Solution.Bearing),
			AngleDeg:       toDegrees(m.Solution.Angle),
			TimeOnTarget:   m.Solution.TimeOnTarget,
		})
	}
	return export
}

// Export formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

func validFormat(format string) bool {
	return format == "" || format == FormatJSON || format == FormatMsgpack
}

// exportFile writes the log to OutputDir. JSON is gzipped and msgpack is
// zstd compressed when CompressOutput is set. Callers hold b.mu.
func (b *Backend) exportFile() error {
	export := b.buildExport()

	started := b.started
	if started.IsZero() {
		started = time.Now().UTC()
	}

	format := b.cfg.Format
	if format == "" {
		format = FormatJSON
	}
	filename := fmt.Sprintf("firemissions_%s.%s", started.Format("20060102_150405"), format)
	switch {
	case b.cfg.CompressOutput && format == FormatMsgpack:
		filename += ".zst"
	case b.cfg.CompressOutput:
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatMsgpack:
		err = writeMsgpack(f, export, b.cfg.CompressOutput)
	default:
		err = writeJSON(f, export, b.cfg.CompressOutput)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(w io.Writer, data any, compress bool) error {
	if !compress {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	gw := gzip.NewWriter(w)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// writeMsgpack encodes with the json tags so both formats share field names.
func writeMsgpack(w io.Writer, data any, compress bool) error {
	newEncoder := func(w io.Writer) *msgpack.Encoder {
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc
	}

	if !compress {
		if err := newEncoder(w).Encode(data); err != nil {
			return fmt.Errorf("failed to encode msgpack: %w", err)
		}
		return nil
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := newEncoder(zw).Encode(data); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode msgpack: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}
