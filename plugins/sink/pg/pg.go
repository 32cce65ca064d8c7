// Package pg 以只追加方式将条带分段写入已存在的 PostGIS 表。
// 建表不在本组件职责内；几何列以 ST_GeomFromText(wkt, srid) 写入。
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/paulmach/orb/encoding/wkt"

	"ribbonify/pkg/contract"
	"ribbonify/plugins/sink/internal/record"
)

type Options struct {
	// DSN: lib/pq 连接串（如 "postgres://user@host/db?sslmode=disable"）。
	DSN string `json:"dsn"`
	// Schema: 可选模式名。
	Schema string `json:"schema,omitempty"`
	// Table: 目标表（必需）。
	Table string `json:"table"`
	// GeometryColumn: 几何列名，默认 "geom"。
	GeometryColumn string `json:"geometry_column,omitempty"`
	// DatasetColumn: 可选，写入数据集标识的列名。
	DatasetColumn string `json:"dataset_column,omitempty"`
	// SRID: 坐标参考系编号，默认 0（未知）。
	SRID int `json:"srid,omitempty"`
	// Classed: 是否写入分级列。
	Classed bool `json:"classed,omitempty"`
}

// Sink: PostGIS 输出。连接池在进程内共享。
type Sink struct {
	db   *sql.DB
	opts Options
}

var _ contract.Sink = (*Sink)(nil)

func (o *Options) normalize() error {
	if strings.TrimSpace(o.Table) == "" {
		return fmt.Errorf("%w: pg sink requires table", contract.ErrConfiguration)
	}
	if o.GeometryColumn == "" {
		o.GeometryColumn = "geom"
	}
	if o.SRID < 0 {
		return fmt.Errorf("%w: srid must be >= 0", contract.ErrConfiguration)
	}
	return nil
}

// New 打开连接池（惰性连接，首次 Open 时才真正建连）。
func New(opts *Options) (*Sink, error) {
	if opts == nil || strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("%w: pg sink requires dsn", contract.ErrConfiguration)
	}
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
	}
	s, err := NewWithDB(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB 使用调用方提供的连接池。
func NewWithDB(db *sql.DB, opts *Options) (*Sink, error) {
	o := *opts
	if err := o.normalize(); err != nil {
		return nil, err
	}
	return &Sink{db: db, opts: o}, nil
}

// Close 释放连接池。
func (s *Sink) Close() error { return s.db.Close() }

// InsertSQL 构造参数化 INSERT；标识符经 pq.QuoteIdentifier 转义。
func (s *Sink) InsertSQL() string {
	cols := record.Columns(s.opts.Classed)
	if s.opts.DatasetColumn != "" {
		cols = append([]string{s.opts.DatasetColumn}, cols...)
	}
	quoted := make([]string, 0, len(cols)+1)
	ph := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		quoted = append(quoted, pq.QuoteIdentifier(strings.ToLower(c)))
		ph = append(ph, fmt.Sprintf("$%d", i+1))
	}
	quoted = append(quoted, pq.QuoteIdentifier(s.opts.GeometryColumn))
	ph = append(ph, fmt.Sprintf("ST_GeomFromText($%d, %d)", len(cols)+1, s.opts.SRID))

	table := pq.QuoteIdentifier(s.opts.Table)
	if s.opts.Schema != "" {
		table = pq.QuoteIdentifier(s.opts.Schema) + "." + table
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(ph, ", "))
}

// Open 预编译 INSERT。每条记录独立提交：单条失败不影响其余记录。
func (s *Sink) Open(ctx context.Context, id contract.ArtifactID) (contract.SegmentWriter, error) {
	stmt, err := s.db.PrepareContext(ctx, s.InsertSQL())
	if err != nil {
		return nil, err
	}
	return &writer{stmt: stmt, id: id, classed: s.opts.Classed, withID: s.opts.DatasetColumn != ""}, nil
}

type writer struct {
	stmt    *sql.Stmt
	id      contract.ArtifactID
	classed bool
	withID  bool
}

func (w *writer) Append(ctx context.Context, seg contract.Segment) error {
	args := record.Values(seg, w.classed)
	if w.withID {
		args = append([]any{string(w.id)}, args...)
	}
	args = append(args, wkt.MarshalString(record.Polygon(seg)))
	if _, err := w.stmt.ExecContext(ctx, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: point %d: %v", contract.ErrSinkWrite, seg.PointID, err)
	}
	return nil
}

func (w *writer) Close() error { return w.stmt.Close() }
