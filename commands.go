package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/app"
	"github.com/harrisonrobin/lwtt/pkg/auth"
	"github.com/harrisonrobin/lwtt/pkg/colors"
	"github.com/harrisonrobin/lwtt/pkg/config"
	"github.com/harrisonrobin/lwtt/pkg/google"
	"github.com/harrisonrobin/lwtt/pkg/index"
	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/report"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
	"github.com/harrisonrobin/lwtt/pkg/store"
	"github.com/harrisonrobin/lwtt/pkg/table"
	"github.com/harrisonrobin/lwtt/pkg/util"
)

// Publisher upserts one timesheet event per task and deletes the events
// of removed tasks.
type Publisher interface {
	PublishTask(rec model.Record, day time.Time) error
	DeleteEvent(eventID string) error
}

type env struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	stdout     io.Writer
	format     string
	day        string
	// publisher replaces the Google Calendar client in tests.
	publisher Publisher
}

type command struct {
	name    string
	usage   string
	summary string
	minArgs int
	maxArgs int // -1 for no limit
	run     func(e *env, args []string) error
}

var commands = []command{
	{"list", "list [--format F]", "print the timesheet", 0, 0, (*env).list},
	{"add", "add NAME", "create a task", 1, -1, (*env).add},
	{"rename", "rename ROW NAME", "rename a task", 2, -1, (*env).rename},
	{"set-time", "set-time ROW H:MM", "set the tracked time of a task", 2, 2, (*env).setTime},
	{"set-rate", "set-rate ROW RATE", "set the hourly rate of a task", 2, 2, (*env).setRate},
	{"reset", "reset ROW...", "zero the tracked time of tasks", 1, -1, (*env).reset},
	{"remove", "remove ROW...", "delete tasks", 1, -1, (*env).remove},
	{"sort", "sort COLUMN [ORDER]", "sort by name, time or price; asc, desc or none", 1, 2, (*env).sort},
	{"publish", "publish [--day D]", "publish the timesheet to Google Calendar", 0, 0, (*env).publish},
	{"auth", "auth", "authorize Google Calendar access", 0, 0, (*env).auth},
	{"set-calendar", "set-calendar NAME", "save the default calendar in the config file", 1, -1, (*env).setCalendar},
}

func commandHelp() string {
	var b strings.Builder
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-28s %s\n", c.usage, c.summary)
	}
	return b.String()
}

func (e *env) dispatch(name string, args []string) error {
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
			return fmt.Errorf("usage: lwtt %s", c.usage)
		}
		e.logger = e.logger.With("command", name)
		return c.run(e, args)
	}
	return fmt.Errorf("unknown command %q (see lwtt --help)", name)
}

// openSession loads the data file named by cfg. Commands save
// explicitly, so only the window autosaves.
func openSession(cfg *config.Config, logger *slog.Logger, autosave bool, onError func(error)) (*app.Session, error) {
	path, err := cfg.ResolveDataFile()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}
	return app.Open(store.New(path), app.Options{
		Logger:           logger,
		AutosaveInterval: interval,
		DefaultRate:      cfg.DefaultRate,
		Autosave:         autosave,
		OnError:          onError,
	})
}

// read runs fn on a session that is never saved.
func (e *env) read(fn func(s *app.Session) error) error {
	s, err := openSession(e.cfg, e.logger, false, nil)
	if err != nil {
		return err
	}
	return fn(s)
}

// mutate runs fn and saves the result through Close.
func (e *env) mutate(fn func(s *app.Session) error) error {
	s, err := openSession(e.cfg, e.logger, false, nil)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.Close()
}

// parseRows converts 1-based ROW arguments to view rows of s.
func parseRows(s *app.Session, args []string) ([]int, error) {
	n := len(s.Rows())
	rows := make([]int, 0, len(args))
	for _, arg := range args {
		row, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("row %q is not a number", arg)
		}
		if row < 1 || row > n {
			return nil, fmt.Errorf("row %d out of range (have %d tasks)", row, n)
		}
		rows = append(rows, row-1)
	}
	return rows, nil
}

func (e *env) list(args []string) error {
	format, err := report.ParseFormat(e.format)
	if err != nil {
		return err
	}
	return e.read(func(s *app.Session) error {
		return report.Render(e.stdout, report.Build(s.Rows()), format)
	})
}

func (e *env) add(args []string) error {
	name := strings.Join(args, " ")
	return e.mutate(func(s *app.Session) error {
		row, err := s.Add()
		if err != nil {
			return err
		}
		if err := s.Rename(row, name); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "added %q\n", name)
		return nil
	})
}

func (e *env) rename(args []string) error {
	return e.mutate(func(s *app.Session) error {
		rows, err := parseRows(s, args[:1])
		if err != nil {
			return err
		}
		return s.Rename(rows[0], strings.Join(args[1:], " "))
	})
}

func (e *env) setTime(args []string) error {
	return e.mutate(func(s *app.Session) error {
		rows, err := parseRows(s, args[:1])
		if err != nil {
			return err
		}
		return s.EditConsumption(rows[0], args[1])
	})
}

func (e *env) setRate(args []string) error {
	rate, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: rate %q is not a number", table.ErrRejectedInput, args[1])
	}
	return e.mutate(func(s *app.Session) error {
		rows, err := parseRows(s, args[:1])
		if err != nil {
			return err
		}
		return s.SetRate(rows[0], rate)
	})
}

func (e *env) reset(args []string) error {
	return e.mutate(func(s *app.Session) error {
		rows, err := parseRows(s, args)
		if err != nil {
			return err
		}
		return s.Reset(rows)
	})
}

func (e *env) remove(args []string) error {
	return e.mutate(func(s *app.Session) error {
		rows, err := parseRows(s, args)
		if err != nil {
			return err
		}
		if err := s.Remove(rows); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "removed %d task(s)\n", len(rows))
		return nil
	})
}

var columnNames = map[string]int{
	"name":  table.ColumnName,
	"time":  table.ColumnConsumption,
	"price": table.ColumnPrice,
}

func (e *env) sort(args []string) error {
	column, ok := columnNames[strings.ToLower(args[0])]
	if !ok {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > table.ColumnCount {
			return fmt.Errorf("unknown column %q (want name, time, price or 1-%d)", args[0], table.ColumnCount)
		}
		column = n - 1
	}
	order := sortview.Ascending
	if len(args) > 1 {
		spelling := args[1]
		if strings.EqualFold(spelling, "none") {
			spelling = ""
		}
		var err error
		if order, err = sortview.ParseOrder(spelling); err != nil {
			return err
		}
	}
	return e.mutate(func(s *app.Session) error {
		return s.SetSort(sortview.Key{Column: column, Order: order})
	})
}

func (e *env) publishDay() (time.Time, error) {
	if e.day == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation(util.DayLayout, e.day, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--day: %w", err)
	}
	return day, nil
}

func (e *env) publish(args []string) error {
	day, err := e.publishDay()
	if err != nil {
		return err
	}
	dataFile, err := e.cfg.ResolveDataFile()
	if err != nil {
		return err
	}
	idx, err := index.NewEventIndex(index.DefaultPath(dataFile))
	if err != nil {
		e.logger.Warn("event index unreadable, starting empty", "err", err)
		idx = &index.EventIndex{Mappings: make(map[string]string), Path: index.DefaultPath(dataFile)}
	}

	palette, err := colors.NewColorCache(colors.DefaultPath(dataFile), nil)
	if err != nil {
		e.logger.Warn("color cache unreadable, starting empty", "err", err)
		palette = &colors.ColorCache{Path: colors.DefaultPath(dataFile), Tasks: make(map[string]*colors.TaskColor)}
	}

	publisher := e.publisher
	if publisher == nil {
		client, err := google.NewClient(context.Background(), e.cfg.Calendar, idx, e.logger)
		if err != nil {
			return err
		}
		client.SetColors(palette)
		publisher = calendarPublisher{client}
	}

	return e.read(func(s *app.Session) error {
		records := s.Records()
		ids := make([]int, 0, len(records))
		published, skipped := 0, 0
		var errs []error
		for _, rec := range records {
			ids = append(ids, rec.ID)
			if rec.Consumption < time.Minute {
				skipped++
				continue
			}
			if err := publisher.PublishTask(rec, day); err != nil {
				e.logger.Error("publish failed", "task", rec.ID, "err", err)
				errs = append(errs, fmt.Errorf("task %q: %w", rec.Name, err))
				continue
			}
			published++
		}
		// a failed delete keeps its mapping so the next publish retries it
	orphans:
		for taskID, events := range idx.Orphans(ids) {
			for _, eventID := range events {
				if err := publisher.DeleteEvent(eventID); err != nil {
					e.logger.Error("delete failed", "task", taskID, "event", eventID, "err", err)
					errs = append(errs, fmt.Errorf("removed task %d: %w", taskID, err))
					continue orphans
				}
			}
			idx.Remove(taskID)
			e.logger.Debug("deleted events of removed task", "task", taskID, "events", len(events))
		}
		if err := idx.Save(); err != nil {
			errs = append(errs, fmt.Errorf("cannot save event index: %w", err))
		}
		palette.Forget(ids)
		if err := palette.Save(); err != nil {
			errs = append(errs, fmt.Errorf("cannot save color cache: %w", err))
		}
		fmt.Fprintf(e.stdout, "published %d task(s) to %q, skipped %d without tracked time\n",
			published, e.cfg.Calendar, skipped)
		return errors.Join(errs...)
	})
}

type calendarPublisher struct{ client *google.CalendarClient }

func (p calendarPublisher) PublishTask(rec model.Record, day time.Time) error {
	_, err := p.client.PublishTask(rec, day)
	return err
}

func (p calendarPublisher) DeleteEvent(eventID string) error {
	return p.client.DeleteEvent(eventID)
}

func (e *env) auth(args []string) error {
	if err := auth.Authorize(context.Background(), auth.CalendarScopes, e.logger); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintln(e.stdout, "Authentication successful.")
	return nil
}

func (e *env) setCalendar(args []string) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	cfg.Calendar = strings.Join(args, " ")
	if err := config.Save(e.configPath, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(e.stdout, "Default calendar set to: %s\n", cfg.Calendar)
	return nil
}
