package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/firecontrol/internal/dispatcher"
	"github.com/OCAP2/firecontrol/internal/storage"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/util"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// DefaultListLimit is the number of fire missions :MISSION:LIST: returns
// when no limit is given.
const DefaultListLimit = 10

// handleLog snapshots the last solved shot and queues it for storage.
func (s *Service) handleLog(d *dispatcher.Dispatcher, _ dispatcher.Event) (any, error) {
	if s.getBackend() == nil {
		return nil, ErrNoStorage
	}
	fm, ok := s.ctx.FireMission()
	if !ok {
		return nil, ErrNoShot
	}

	payload, err := json.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encoding fire mission: %w", err)
	}
	return d.Dispatch(dispatcher.Event{
		Command: recordCommand,
		Args:    []string{string(payload)},
	})
}

// CloseStorage waits for the record queue on d to drain, detaches the
// backend and closes it. It returns the exported file path when the backend
// writes one.
func (s *Service) CloseStorage(ctx context.Context, d *dispatcher.Dispatcher) (string, error) {
	if s.getBackend() == nil {
		return "", nil
	}
	if err := d.Flush(ctx, recordCommand); err != nil {
		return "", fmt.Errorf("draining fire mission queue: %w", err)
	}

	backend := s.SetBackend(nil)
	if backend == nil {
		return "", nil
	}
	if err := backend.Close(); err != nil {
		return "", fmt.Errorf("closing storage backend: %w", err)
	}
	if exp, ok := backend.(storage.Exporter); ok {
		return exp.ExportedFilePath(), nil
	}
	return "", nil
}

// handleRecord writes one JSON encoded fire mission. It runs on the
// dispatcher's record queue.
func (s *Service) handleRecord(e dispatcher.Event) (any, error) {
	functionName := recordCommand
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%w: fire mission", ErrMissingArgs)
	}
	backend := s.getBackend()
	if backend == nil {
		return nil, ErrNoStorage
	}

	var fm core.FireMission
	if err := json.Unmarshal([]byte(e.Args[0]), &fm); err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error unmarshalling fire mission: %v`, err), "ERROR")
		return nil, fmt.Errorf("decoding fire mission: %w", err)
	}

	if err := backend.RecordFireMission(&fm); err != nil {
		return nil, fmt.Errorf("recording fire mission: %w", err)
	}
	s.recorded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("weapon", fm.Weapon)))
	s.logger().Info("Fire mission recorded",
		"id", fm.ID,
		"worldName", fm.WorldName,
		"weapon", fm.Weapon,
		"distance", fm.Solution.Distance,
	)
	return "ok", nil
}

// handleList returns recent fire missions, newest first. Arguments are all
// optional: limit, weapon, world name. Each row is [id, time, world, weapon,
// range, trajectory, distance, bearing, angle, timeOnTarget, unit] with angles
// in the current display unit.
func (s *Service) handleList(e dispatcher.Event) (any, error) {
	backend := s.getBackend()
	if backend == nil {
		return nil, ErrNoStorage
	}
	args := util.CleanArgs(e.Args)

	limit := DefaultListLimit
	if v := util.Arg(args, 0, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
		limit = n
	}

	missions, err := backend.FireMissions(core.FireMissionFilter{
		Weapon:    util.Arg(args, 1, ""),
		WorldName: util.Arg(args, 2, ""),
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	unit := s.ctx.State().Unit
	rows := make([][]any, 0, len(missions))
	for _, m := range missions {
		rows = append(rows, missionRow(m, unit))
	}
	return rows, nil
}

func missionRow(m core.FireMission, unit units.Unit) []any {
	return []any{
		m.ID,
		m.Time.UTC().Format(time.RFC3339),
		m.WorldName,
		m.Weapon,
		m.Range,
		m.Trajectory,
		units.RoundTenth(m.Solution.Distance),
		unit.Convert(m.Solution.Bearing),
		unit.Convert(m.Solution.Angle),
		units.RoundTenth(m.Solution.TimeOnTarget),
		unit.Name,
	}
}
