// Package record keeps a SQLite ledger of generation runs.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/asmgen/generator"
)

// Table names.
const (
	RunTable      = "asmgen_run"
	ArtifactTable = "asmgen_artifact"
)

// RunRow is one row of the run table.
type RunRow struct {
	RunID      string
	Mode       string
	Hostname   string
	Platform   string
	KernelArch string
	Levels     int
	Failed     int
	Fatal      string
}

// ArtifactRow is one row of the artifact table.
type ArtifactRow struct {
	RunID         string
	Level         string
	Sets          int
	Associativity int
	PrevOffset    int64
	NextOffset    int64
	ProbeUnroll   int
	PrimeUnroll   int
	FileName      string
	Fingerprint   string
	Status        string
	Error         string
}

// hostInfo is replaced in tests.
var hostInfo = host.Info

// Recorder is a generator hook that stores every run and every level.
type Recorder struct {
	*sql.DB

	log       zerolog.Logger
	path      string
	current   string
	last      string
	host      RunRow
	runs      []RunRow
	artifacts []ArtifactRow
}

// New opens, or creates, the ledger <path>.sqlite3. Pending rows are
// flushed at exit.
func New(path string) (*Recorder, error) {
	filename := path + ".sqlite3"

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", filename, err)
	}

	r := &Recorder{DB: db, path: filename, log: zerolog.Nop()}
	r.host = r.hostFacts()

	for name, sample := range map[string]any{
		RunTable:      RunRow{},
		ArtifactTable: ArtifactRow{},
	} {
		if err := r.createTable(name, sample); err != nil {
			db.Close()
			return nil, err
		}
	}

	atexit.Register(r.flushAndLog)

	return r, nil
}

// Path returns the file name of the ledger.
func (r *Recorder) Path() string {
	return r.path
}

// LastRunID returns the id of the last completed run.
func (r *Recorder) LastRunID() string {
	return r.last
}

func (r *Recorder) hostFacts() RunRow {
	info, err := hostInfo()
	if err != nil || info == nil {
		return RunRow{}
	}

	return RunRow{
		Hostname:   info.Hostname,
		Platform:   strings.TrimSpace(info.Platform + " " + info.PlatformVersion),
		KernelArch: info.KernelArch,
	}
}

func (r *Recorder) runID() string {
	if r.current == "" {
		r.current = xid.New().String()
	}

	return r.current
}

// Func records the item of a hook invocation. Flush failures are logged
// with the logger of the generator; the rows stay pending and Close
// reports the error.
func (r *Recorder) Func(ctx generator.HookCtx) {
	if ctx.Generator != nil {
		r.log = ctx.Generator.Logger()
	}

	switch ctx.Pos {
	case generator.HookPosLevelDone:
		res, ok := ctx.Item.(generator.LevelResult)
		if ok {
			r.artifacts = append(r.artifacts, r.artifactRow(res))
		}
	case generator.HookPosRunDone:
		report, ok := ctx.Item.(*generator.RunReport)
		if !ok {
			return
		}

		r.runs = append(r.runs, r.runRow(report))
		r.last = r.current
		r.current = ""

		r.flushAndLog()
	}
}

func (r *Recorder) flushAndLog() {
	if err := r.Flush(); err != nil {
		r.log.Error().
			Err(err).
			Str("ledger", r.path).
			Int("pending_runs", len(r.runs)).
			Int("pending_artifacts", len(r.artifacts)).
			Msg("[record] cannot store run")
	}
}

func (r *Recorder) runRow(report *generator.RunReport) RunRow {
	row := r.host
	row.RunID = r.runID()
	row.Mode = report.Mode.String()
	row.Levels = len(report.Results)
	row.Failed = len(report.Failed())
	if report.Fatal != nil {
		row.Fatal = report.Fatal.Error()
	}

	return row
}

func (r *Recorder) artifactRow(res generator.LevelResult) ArtifactRow {
	row := ArtifactRow{
		RunID:         r.runID(),
		Level:         res.Level,
		Sets:          res.Geometry.Sets,
		Associativity: res.Geometry.Associativity,
		PrevOffset:    res.Geometry.Offsets.Prev,
		NextOffset:    res.Geometry.Offsets.Next,
		ProbeUnroll:   res.ProbeUnroll,
		PrimeUnroll:   res.PrimeUnroll,
		FileName:      res.FileName,
		Status:        status(res),
	}

	if res.Fingerprint != 0 {
		row.Fingerprint = fmt.Sprintf("%016x", res.Fingerprint)
	}

	if res.Err != nil {
		row.Error = res.Err.Error()
	}

	return row
}

func status(res generator.LevelResult) string {
	switch {
	case res.Stale:
		return "stale"
	case res.Err != nil:
		return "failed"
	case res.Written:
		return "written"
	default:
		return "ok"
	}
}

func isAllowedType(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func (r *Recorder) createTable(name string, sample any) error {
	types := reflect.TypeOf(sample)
	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		if !isAllowedType(field.Type.Kind()) {
			return fmt.Errorf("field %s of %s cannot be stored", field.Name, name)
		}
	}

	fields := strings.Join(structs.Names(sample), ", \n\t")
	query := `CREATE TABLE IF NOT EXISTS ` + name +
		` (` + "\n\t" + fields + "\n" + `);`

	if _, err := r.Exec(query); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	return nil
}

// Flush writes all buffered rows in one transaction.
func (r *Recorder) Flush() error {
	if len(r.runs) == 0 && len(r.artifacts) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return err
	}

	err = errors.Join(
		insertAll(tx, RunTable, r.runs),
		insertAll(tx, ArtifactTable, r.artifacts),
	)
	if err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.runs = nil
	r.artifacts = nil

	return nil
}

func insertAll[T any](tx *sql.Tx, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := structs.Names(rows[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + table +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		v := reflect.ValueOf(row)
		args := make([]any, 0, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			args = append(args, v.Field(i).Interface())
		}

		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	return nil
}

// Close flushes pending rows and closes the database.
func (r *Recorder) Close() error {
	return errors.Join(r.Flush(), r.DB.Close())
}
