package recording

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/baccuslab/blds/internal/samples"
)

// sqliteSink is the SQLite-backed Sink. Samples live one row per sample
// index in a "rows" table; everything else (sample rate, channel count,
// gain, calibration, source configuration) lives in a single "meta" row.
type sqliteSink struct {
	db *sql.DB

	path       string
	sampleRate float64
	nchannels  int
	nsamples   uint64
	isHidens   bool
}

// CreateSQLiteSink creates a new recording file at path. It fails with
// ErrPathExists if path already exists, matching the "creating a sink with
// a path that already exists fails" rule.
func CreateSQLiteSink(path string, sampleRate float64, nchannels int, isHidens bool) (Sink, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrPathExists{Path: path}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat recording path: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open recording database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}

	_, err = db.Exec(
		`INSERT INTO meta (id, sample_rate, nchannels, gain, offset, date, analog_output_size, configuration, is_hidens)
		 VALUES (1, ?, ?, 0, 0, '', 0, NULL, ?)`,
		sampleRate, nchannels, isHidens,
	)
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("initialize recording metadata: %w", err)
	}

	return &sqliteSink{db: db, path: path, sampleRate: sampleRate, nchannels: nchannels, isHidens: isHidens}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			sample_rate REAL NOT NULL,
			nchannels INTEGER NOT NULL,
			gain REAL NOT NULL,
			offset REAL NOT NULL,
			date TEXT NOT NULL,
			analog_output_size INTEGER NOT NULL,
			configuration BLOB,
			is_hidens INTEGER NOT NULL
		);
		CREATE TABLE rows (
			sample_index INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create recording schema: %w", err)
	}
	return nil
}

func (s *sqliteSink) Append(m samples.Matrix) (uint64, error) {
	if m.NChannels != s.nchannels {
		return 0, fmt.Errorf("append: matrix has %d channels, sink has %d", m.NChannels, s.nchannels)
	}
	// m is also handed to every subscribed client's data frame; copy it so
	// this sink never holds or mutates the caller's backing array.
	m = m.Copy()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin append transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO rows (sample_index, data) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare append statement: %w", err)
	}
	defer stmt.Close()

	startIndex := s.nsamples
	rows := m.Rows()
	for i := 0; i < rows; i++ {
		row := make([]byte, s.nchannels*2)
		for c := 0; c < s.nchannels; c++ {
			binary.LittleEndian.PutUint16(row[c*2:c*2+2], uint16(m.Data[i*s.nchannels+c]))
		}
		if _, err := stmt.Exec(int64(startIndex)+int64(i), row); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("append row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	s.nsamples += uint64(rows)
	return startIndex, nil
}

func (s *sqliteSink) Read(startSample, endSample uint64) (samples.Matrix, error) {
	if endSample < startSample {
		return samples.Matrix{}, fmt.Errorf("read: endSample %d before startSample %d", endSample, startSample)
	}
	rows, err := s.db.Query(
		`SELECT sample_index, data FROM rows WHERE sample_index >= ? AND sample_index < ? ORDER BY sample_index ASC`,
		int64(startSample), int64(endSample),
	)
	if err != nil {
		return samples.Matrix{}, fmt.Errorf("read: %w", err)
	}
	defer rows.Close()

	n := int(endSample - startSample)
	out := samples.New(n, s.nchannels)
	seen := 0
	for rows.Next() {
		var idx int64
		var data []byte
		if err := rows.Scan(&idx, &data); err != nil {
			return samples.Matrix{}, fmt.Errorf("scan row: %w", err)
		}
		i := int(uint64(idx) - startSample)
		if len(data) != s.nchannels*2 {
			return samples.Matrix{}, fmt.Errorf("row %d has %d bytes, want %d", idx, len(data), s.nchannels*2)
		}
		for c := 0; c < s.nchannels; c++ {
			out.Data[i*s.nchannels+c] = int16(binary.LittleEndian.Uint16(data[c*2 : c*2+2]))
		}
		seen++
	}
	if err := rows.Err(); err != nil {
		return samples.Matrix{}, fmt.Errorf("read: %w", err)
	}
	if seen != n {
		return samples.Matrix{}, fmt.Errorf("read [%d,%d): expected %d rows, found %d", startSample, endSample, n, seen)
	}
	return out, nil
}

func (s *sqliteSink) SampleRate() float64 { return s.sampleRate }
func (s *sqliteSink) NSamples() uint64 { return s.nsamples }
func (s *sqliteSink) Length() float64 { return float64(s.nsamples) / s.sampleRate }

func (s *sqliteSink) SetGain(g float32) error {
	_, err := s.db.Exec(`UPDATE meta SET gain = ? WHERE id = 1`, float64(g))
	if err != nil {
		return fmt.Errorf("set gain: %w", err)
	}
	return nil
}

func (s *sqliteSink) SetOffset(o float32) error {
	_, err := s.db.Exec(`UPDATE meta SET offset = ? WHERE id = 1`, float64(o))
	if err != nil {
		return fmt.Errorf("set offset: %w", err)
	}
	return nil
}

func (s *sqliteSink) SetDate(t time.Time) error {
	_, err := s.db.Exec(`UPDATE meta SET date = ? WHERE id = 1`, t.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set date: %w", err)
	}
	return nil
}

func (s *sqliteSink) SetAnalogOutputSize(n int) error {
	if s.isHidens {
		return fmt.Errorf("set-analog-output-size is not supported on hidens recordings")
	}
	_, err := s.db.Exec(`UPDATE meta SET analog_output_size = ? WHERE id = 1`, n)
	if err != nil {
		return fmt.Errorf("set analog output size: %w", err)
	}
	return nil
}

func (s *sqliteSink) SetConfiguration(cfg []byte) error {
	if !s.isHidens {
		return fmt.Errorf("set-configuration is only supported on hidens recordings")
	}
	_, err := s.db.Exec(`UPDATE meta SET configuration = ? WHERE id = 1`, cfg)
	if err != nil {
		return fmt.Errorf("set configuration: %w", err)
	}
	return nil
}

func (s *sqliteSink) Close() error {
	return s.db.Close()
}
