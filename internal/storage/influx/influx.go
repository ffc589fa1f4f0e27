// Package influx implements the storage.Backend interface on InfluxDB 2.
// Fire missions are written as points; when the server is unreachable at
// Init they go to a gzipped line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/grid"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Measurement is the measurement name fire missions are written under.
const Measurement = "fire_mission"

// RetentionDays is applied to the bucket when Init has to create it.
const RetentionDays = 90

const pingTimeout = 5 * time.Second

// ErrOffline is returned for queries while writing to the backup file.
var ErrOffline = errors.New("influxdb unreachable, missions are written to the backup file")

// ErrNotInitialized is returned when the backend is used before Init.
var ErrNotInitialized = errors.New("influx storage not initialized")

// Backend writes fire missions to InfluxDB or its backup file.
type Backend struct {
	cfg config.InfluxConfig
	log *slog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	online     bool
	nextID     uint
	errsDone   chan struct{}
}

// New creates a new InfluxDB storage backend.
func New(cfg config.InfluxConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, log: logger}
}

// Online reports whether points go to the server rather than the backup.
func (b *Backend) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

// Init connects to the server and makes sure the bucket exists, falling
// back to the backup file when the server does not answer.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.log.Warn("InfluxDB unreachable, writing to backup file", "url", b.cfg.URL(), "backupPath", b.cfg.BackupPath, "error", err)
		return b.openBackupLocked()
	}

	if err := b.ensureBucket(ctx); err != nil {
		return err
	}

	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	b.errsDone = make(chan struct{})
	go func(errs <-chan error, done chan<- struct{}) {
		defer close(done)
		for writeErr := range errs {
			b.log.Error("error sending data to InfluxDB", "bucket", b.cfg.Bucket, "error", writeErr)
		}
	}(b.writer.Errors(), b.errsDone)

	b.online = true
	b.log.Info("InfluxDB client initialized", "url", b.cfg.URL(), "bucket", b.cfg.Bucket)
	return nil
}

func (b *Backend) openBackupLocked() error {
	if b.cfg.BackupPath == "" {
		return fmt.Errorf("influxdb unreachable at %s and no backup path configured", b.cfg.URL())
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(b.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.backup = gzip.NewWriter(file)
	return nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	org, err := b.client.OrganizationsAPI().FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.log.Info("organization not found, creating", "org", b.cfg.Org)
		org, err = b.client.OrganizationsAPI().CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", b.cfg.Org, err)
		}
	}

	if _, err := b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err == nil {
		return nil
	}

	b.log.Info("bucket not found, creating", "bucket", b.cfg.Bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * RetentionDays,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %q: %w", b.cfg.Bucket, err)
	}
	return nil
}

// Close flushes pending points and closes the client or backup file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	if b.errsDone != nil {
		<-b.errsDone
		b.errsDone = nil
	}
	if b.backup != nil {
		errs = append(errs, b.backup.Close(), b.backupFile.Close())
		b.backup, b.backupFile = nil, nil
	}
	b.writer = nil
	b.online = false
	return errors.Join(errs...)
}

// RecordFireMission writes m as a point and assigns a session-local ID.
func (b *Backend) RecordFireMission(m *core.FireMission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer == nil && b.backup == nil {
		return ErrNotInitialized
	}

	b.nextID++
	m.ID = b.nextID
	point := MissionPoint(*m)

	if b.online {
		b.writer.WritePoint(point)
		return nil
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := b.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// FireMissions queries the bucket with Flux. Filtering on weapon and world
// is done client side so it stays case-insensitive.
func (b *Backend) FireMissions(f core.FireMissionFilter) ([]core.FireMission, error) {
	b.mu.Lock()
	client, online := b.client, b.online
	b.mu.Unlock()

	if client == nil {
		return nil, ErrNotInitialized
	}
	if !online {
		return nil, ErrOffline
	}

	result, err := client.QueryAPI(b.cfg.Org).Query(context.Background(), FluxQuery(b.cfg.Bucket, f.Since))
	if err != nil {
		return nil, fmt.Errorf("querying fire missions: %w", err)
	}
	defer result.Close()

	var out []core.FireMission
	for result.Next() {
		rec := result.Record()
		m := MissionFromValues(rec.Time(), rec.Values())
		if f.Match(m) {
			out = append(out, m)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading fire missions: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// FluxQuery returns the query that pivots fire mission points back into
// one row per mission.
func FluxQuery(bucket string, since time.Time) string {
	start := "0"
	if !since.IsZero() {
		start = since.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()`, bucket, start, Measurement)
}

// MissionPoint converts a fire mission to a point. Descriptive values are
// tags, numbers are fields.
func MissionPoint(m core.FireMission) *influxdb2_write.Point {
	tags := make(map[string]string, 4)
	for k, v := range map[string]string{
		"weapon":     m.Weapon,
		"range":      m.Range,
		"trajectory": m.Trajectory,
		"world":      m.WorldName,
	} {
		if v != "" {
			tags[k] = v
		}
	}

	fields := map[string]any{
		"id":              int64(m.ID),
		"muzzleVelocity":  m.MuzzleVelocity,
		"gunQuadrant":     m.GunGrid.Quadrant,
		"gunSectors":      grid.FormatSectors(m.GunGrid.Sectors),
		"gunElevation":    m.GunGrid.Elevation,
		"targetQuadrant":  m.TargetGrid.Quadrant,
		"targetSectors":   grid.FormatSectors(m.TargetGrid.Sectors),
		"targetElevation": m.TargetGrid.Elevation,
		"gunX":            m.Gun.Long,
		"gunY":            m.Gun.Lat,
		"gunZ":            m.Gun.Elevation,
		"targetX":         m.Target.Long,
		"targetY":         m.Target.Lat,
		"targetZ":         m.Target.Elevation,
		"distance":        m.Solution.Distance,
		"bearing":         m.Solution.Bearing,
		"angle":           m.Solution.Angle,
		"timeOnTarget":    m.Solution.TimeOnTarget,
	}

	return influxdb2.NewPoint(Measurement, tags, fields, m.Time)
}

// MissionFromValues rebuilds a fire mission from a pivoted Flux record.
func MissionFromValues(t time.Time, v map[string]any) core.FireMission {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	num := func(k string) float64 {
		switch n := v[k].(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case uint64:
			return float64(n)
		}
		return 0
	}
	sectors := func(k string) []int {
		s, err := grid.ParseSectors(str(k))
		if err != nil || len(s) == 0 {
			return nil
		}
		return s
	}

	return core.FireMission{
		ID:             uint(num("id")),
		Time:           t,
		WorldName:      str("world"),
		Weapon:         str("weapon"),
		Range:          str("range"),
		MuzzleVelocity: num("muzzleVelocity"),
		Trajectory:     str("trajectory"),
		GunGrid: core.Emplacement{
			Quadrant:  str("gunQuadrant"),
			Sectors:   sectors("gunSectors"),
			Elevation: num("gunElevation"),
		},
		TargetGrid: core.Emplacement{
			Quadrant:  str("targetQuadrant"),
			Sectors:   sectors("targetSectors"),
			Elevation: num("targetElevation"),
		},
		Gun:    core.NewPosition(num("gunX"), num("gunY"), num("gunZ")),
		Target: core.NewPosition(num("targetX"), num("targetY"), num("targetZ")),
		Solution: core.Solution{
			Distance:     num("distance"),
			Bearing:      num("bearing"),
			Angle:        num("angle"),
			TimeOnTarget: num("timeOnTarget"),
		},
	}
}

// BackupLines reads a gzip line-protocol backup and returns its non-empty
// lines, for replaying into a server later.
func BackupLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening backup %s: %w", path, err)
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", path, err)
	}

	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}
