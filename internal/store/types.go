package store

import (
	"database/sql"
	"math"
	"time"
)

// ID identifies a persisted row. Ids are assigned by the database, never
// reused and never change once assigned.
type ID int64

// MetaType partitions the meta table. Names are unique within a partition.
type MetaType string

const (
	MetaSession MetaType = "SESSION" // session prototypes
	MetaUser    MetaType = "USER"
	MetaStream  MetaType = "LOG"
	MetaBlob    MetaType = "BLOB"
	MetaPath    MetaType = "PATH"
)

// MetaTypes lists every partition in a stable order.
var MetaTypes = []MetaType{MetaSession, MetaUser, MetaStream, MetaBlob, MetaPath}

// Valid reports whether t is a known partition.
func (t MetaType) Valid() bool {
	for _, known := range MetaTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MetaEntity is a row of the meta table.
type MetaEntity struct {
	ID          ID
	MType       MetaType
	Name        string
	Type        string
	Description string
	JSON        string
	Ref         *ID // meta column, a reference to another entity
}

// Run is one execution of the recording software.
type Run struct {
	ID           ID
	StartTime    time.Time
	EndTime      *time.Time // nil until the run ends cleanly
	Experimenter string
	CleanExit    bool
	JSON         string
}

// Session is one node of the experimental hierarchy.
type Session struct {
	ID          ID
	StartTime   time.Time
	EndTime     *time.Time // nil while open, or after an unclean shutdown
	LastTime    time.Time
	TestRun     bool
	RandomSeed  *int64
	Valid       bool
	Complete    bool
	Description string
	JSON        string
	Parent      *ID
	Path        ID
	Prototype   *ID
}

// RunSession links a session to the run it was opened in.
type RunSession struct {
	ID      ID
	Session ID
	Run     ID
}

// Closure records one ancestor/descendant pair.
type Closure struct {
	ID     ID
	Parent ID
	Child  ID
}

// UserSession is one roster entry captured when a session opened.
type UserSession struct {
	ID      ID
	User    ID
	Session ID
	Role    string
	JSON    string
}

// LogEntry is one timestamped data record.
type LogEntry struct {
	ID      ID
	Session ID
	Valid   bool
	Time    time.Time
	Stream  ID
	Tag     string
	JSON    string
}

// Blob is a binary attachment of a log entry.
type Blob struct {
	ID   ID
	Log  ID
	Meta *ID
	Data []byte
}

// Stage is a setup milestone.
type Stage struct {
	ID   ID
	Name string
	Time time.Time
}

// UnixSeconds converts t to the REAL representation used in time columns.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromUnixSeconds converts a time column back to a time.Time, rounded to the
// microsecond that a float64 can hold for contemporary dates.
func FromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	nsec := math.Round(frac*1e6) * 1e3
	return time.Unix(int64(sec), int64(nsec))
}

func nullTime(t *time.Time) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: UnixSeconds(*t), Valid: true}
}

func timePtr(f sql.NullFloat64) *time.Time {
	if !f.Valid {
		return nil
	}
	t := FromUnixSeconds(f.Float64)
	return &t
}

func nullID(id *ID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func idPtr(n sql.NullInt64) *ID {
	if !n.Valid {
		return nil
	}
	id := ID(n.Int64)
	return &id
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
