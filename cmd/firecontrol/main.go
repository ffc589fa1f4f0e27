// Command firecontrol solves fire missions from a terminal with the same
// tables and storage the Arma extension uses.
//
// Usage:
//
//	firecontrol [-config dir] <command> [flags]
//
// Commands are solve, units, weapons, countdown and history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/countdown"
	"github.com/OCAP2/firecontrol/internal/firecontrol"
	"github.com/OCAP2/firecontrol/internal/grid"
	"github.com/OCAP2/firecontrol/internal/logging"
	"github.com/OCAP2/firecontrol/internal/storage"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/weapons"
	"github.com/OCAP2/firecontrol/pkg/core"
)

var errUsage = errors.New("usage: firecontrol [-config dir] solve|units|weapons|countdown|history [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs after config is loaded.
type app struct {
	out     io.Writer
	errOut  io.Writer
	log     *slog.Logger
	catalog *weapons.Catalog
	state   firecontrol.State
	fc      config.FireControlConfig
	now     func() time.Time
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("firecontrol", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory holding "+config.ConfigFileName)
	logLevel := fs.String("log-level", "", "override logLevel from config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	a, err := newApp(*configDir, *logLevel, stdout, stderr)
	if err != nil {
		return err
	}

	cmd, rest := strings.ToLower(fs.Arg(0)), fs.Args()[1:]
	switch cmd {
	case "solve":
		return a.solve(rest)
	case "units":
		return a.units()
	case "weapons":
		return a.weapons()
	case "countdown":
		return a.countdown(ctx, rest)
	case "history":
		return a.history(rest)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func newApp(configDir, logLevel string, stdout, stderr io.Writer) (*app, error) {
	slogManager := logging.NewSlogManager()
	loadErr := config.Load(configDir)
	if logLevel == "" {
		logLevel = config.GetString("logLevel")
	}
	slogManager.Setup(stderr, logLevel, nil)
	logger := slogManager.Logger()
	if loadErr != nil {
		logger.Debug("Config not loaded, using defaults", "error", loadErr)
	}

	weaponCfgs, err := config.GetWeaponsConfig()
	if err != nil {
		return nil, err
	}
	catalog, err := firecontrol.CatalogFromConfig(weaponCfgs)
	if err != nil {
		return nil, err
	}
	fc := config.GetFireControlConfig()
	state, err := firecontrol.StateFromConfig(fc, catalog)
	if err != nil {
		return nil, err
	}
	return &app{
		out:     stdout,
		errOut:  stderr,
		log:     logger,
		catalog: catalog,
		state:   state,
		fc:      fc,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) solve(args []string) error {
	fs := a.flagSet("solve")
	gun := fs.String("gun", "", "gun quadrant, 6 digits")
	gunSectors := fs.String("gun-sectors", "555", "gun sector picks, keypad digits")
	gunElev := fs.Float64("gun-elev", 0, "gun elevation in meters")
	target := fs.String("target", "", "target quadrant, 6 digits")
	targetSectors := fs.String("target-sectors", "555", "target sector picks, keypad digits")
	targetElev := fs.Float64("target-elev", 0, "target elevation in meters")
	weapon := fs.String("weapon", "", "weapon name")
	charge := fs.String("range", "", "charge: short, medium or long")
	unit := fs.String("unit", "", "display unit")
	trajectory := fs.String("trajectory", "", "high or low")
	record := fs.Bool("log", false, "record the solution to the configured storage")
	world := fs.String("world", "", "world name stored with a recorded solution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gun == "" || *target == "" {
		return errors.New("solve: -gun and -target are required")
	}

	s := a.state
	var err error
	if *weapon != "" {
		w, err := a.catalog.Lookup(*weapon)
		if err != nil {
			return err
		}
		s = s.WithWeapon(w)
	}
	if *charge != "" {
		r, err := weapons.ParseRange(*charge)
		if err != nil {
			return err
		}
		s = s.WithRange(r)
	}
	if *unit != "" {
		u, err := units.Lookup(*unit)
		if err != nil {
			return err
		}
		s = s.WithUnit(u)
	}
	if *trajectory != "" {
		t, err := ballistics.ParseTrajectory(*trajectory)
		if err != nil {
			return err
		}
		s = s.WithTrajectory(t)
	}
	if s, err = a.emplace(s, *gun, *gunSectors, *gunElev, *target, *targetSectors, *targetElev); err != nil {
		return err
	}

	r := firecontrol.Compute(s)
	if !r.OK() {
		fmt.Fprintf(a.out, "no solution: %s\n", r.Reason())
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	f := r.Fields()
	fmt.Fprintf(tw, "weapon\t%s (%s, %.1f m/s, %s)\n", s.Weapon.Name, s.Range, r.MuzzleVelocity, s.Trajectory)
	fmt.Fprintf(tw, "distance\t%s m\n", f[0])
	fmt.Fprintf(tw, "bearing\t%s %s\n", f[1], f[4])
	fmt.Fprintf(tw, "angle\t%s %s\n", f[2], f[4])
	fmt.Fprintf(tw, "time on target\t%s s\n", f[3])
	fmt.Fprintf(tw, "grid cell\t%.1f m gun, %.1f m target\n",
		grid.CellWidth(len(s.Gun.Sectors)), grid.CellWidth(len(s.Target.Sectors)))
	if err := tw.Flush(); err != nil {
		return err
	}

	if *record {
		return a.record(s.FireMission(r, *world, a.now()))
	}
	return nil
}

func (a *app) emplace(s firecontrol.State, gun, gunSectors string, gunElev float64, target, targetSectors string, targetElev float64) (firecontrol.State, error) {
	gs, err := grid.ParseSectors(gunSectors)
	if err != nil {
		return s, fmt.Errorf("gun: %w", err)
	}
	ts, err := grid.ParseSectors(targetSectors)
	if err != nil {
		return s, fmt.Errorf("target: %w", err)
	}
	s = s.WithGun(core.Emplacement{Quadrant: gun, Sectors: gs, Elevation: gunElev})
	s = s.WithTarget(core.Emplacement{Quadrant: target, Sectors: ts, Elevation: targetElev})
	return s, nil
}

func (a *app) record(m core.FireMission) error {
	backend, err := a.openStorage()
	if err != nil {
		return err
	}
	if err := backend.RecordFireMission(&m); err != nil {
		backend.Close()
		return fmt.Errorf("recording fire mission: %w", err)
	}
	if err := backend.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "recorded fire mission %d\n", m.ID)
	if exp, ok := backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		fmt.Fprintf(a.out, "exported to %s\n", exp.ExportedFilePath())
	}
	return nil
}

func (a *app) openStorage() (storage.Backend, error) {
	backend, err := storage.NewBackend(config.GetStorageConfig(), a.log)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	return backend, nil
}

func (a *app) units() error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPER RADIAN\tDECIMALS")
	for _, u := range units.All() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", u.Name, strconv.FormatFloat(u.Factor, 'f', -1, 64), u.Decimals)
	}
	return tw.Flush()
}

func (a *app) weapons() error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "NAME")
	for _, r := range weapons.Ranges() {
		fmt.Fprintf(tw, "\t%s", strings.ToUpper(r.String()))
	}
	fmt.Fprintln(tw, "\tUNIT")
	for _, w := range a.catalog.All() {
		fmt.Fprint(tw, w.Name)
		for _, r := range weapons.Ranges() {
			v, err := w.MuzzleVelocity(r)
			if err != nil {
				fmt.Fprint(tw, "\t-")
				continue
			}
			fmt.Fprintf(tw, "\t%s", strconv.FormatFloat(v, 'f', -1, 64))
		}
		fmt.Fprintf(tw, "\t%s\n", w.DefaultUnit.Name)
	}
	return tw.Flush()
}

func (a *app) countdown(ctx context.Context, args []string) error {
	fs := a.flagSet("countdown")
	tof := fs.Float64("tof", 0, "time on target in seconds")
	interval := fs.Duration("interval", countdown.Resolution, "wall-clock time between steps")
	alert := fs.Duration("alert", a.fc.AlertOffset, "splash warning before impact, 0 disables")
	all := fs.Bool("all", false, "print every step instead of whole seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tof <= 0 {
		return errors.New("countdown: -tof must be positive")
	}

	steps := countdown.Run(ctx, time.Duration(*tof*float64(time.Second)),
		countdown.WithInterval(*interval),
		countdown.WithAlertOffset(*alert),
	)
	for step := range steps {
		switch step.Event {
		case countdown.Splash:
			fmt.Fprintln(a.out, "SPLASH")
		case countdown.Alert:
			fmt.Fprintf(a.out, "splash in %s s\n", step.Display())
		default:
			if *all || step.Remaining%time.Second == 0 {
				fmt.Fprintln(a.out, step.Display())
			}
		}
	}
	return ctx.Err()
}

func (a *app) history(args []string) error {
	fs := a.flagSet("history")
	limit := fs.Int("limit", 10, "maximum number of fire missions")
	weapon := fs.String("weapon", "", "only missions fired by this weapon")
	world := fs.String("world", "", "only missions on this world")
	since := fs.Duration("since", 0, "only missions newer than this")
	unitName := fs.String("unit", "", "display unit, defaults to the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	unit := a.state.Unit
	if *unitName != "" {
		u, err := units.Lookup(*unitName)
		if err != nil {
			return err
		}
		unit = u
	}

	filter := core.FireMissionFilter{WorldName: *world, Weapon: *weapon, Limit: *limit}
	if *since > 0 {
		filter.Since = a.now().Add(-*since)
	}

	backend, err := a.openStorage()
	if err != nil {
		return err
	}
	defer backend.Close()

	missions, err := backend.FireMissions(filter)
	if err != nil {
		return fmt.Errorf("reading fire missions: %w", err)
	}
	if len(missions) == 0 {
		fmt.Fprintln(a.out, "no fire missions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTIME\tWORLD\tWEAPON\tRANGE\tDIST\tBEARING\tANGLE\tTOF\n")
	for _, m := range missions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f\t%s\t%s\t%.1f\n",
			m.ID,
			m.Time.UTC().Format(time.RFC3339),
			m.WorldName,
			m.Weapon,
			m.Range,
			units.RoundTenth(m.Solution.Distance),
			unit.Format(m.Solution.Bearing),
			unit.Format(m.Solution.Angle),
			units.RoundTenth(m.Solution.TimeOnTarget),
		)
	}
	return tw.Flush()
}
