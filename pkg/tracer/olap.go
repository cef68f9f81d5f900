package tracer

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stleox/spanflow/pkg/config"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Olap 把完成的 span 和事件批量写进 MySQL 协议的 OLAP 库，
// 供离线查询 trace 拓扑。
type Olap struct {
	conn          sqlx.SqlConn
	spanInserter  *sqlx.BulkInserter
	eventInserter *sqlx.BulkInserter
}

func NewOlap(vp *viper.Viper) *Olap {
	// conn to the OLAP server
	olapDSN := vp.GetString("SPANFLOW_OLAP_DSN")
	if olapDSN == "" {
		olapDSN = config.SPANFLOW_DEFAULT_DSN
	}

	db := sqlx.NewMysql(olapDSN)

	err := CreateSpanTable(db)
	if err != nil {
		logrus.WithError(err).Error("spanflow couldn't create table t_Span")
		return nil
	}

	spanInserter, err := NewSpanInserter(db)
	if err != nil {
		logrus.WithError(err).Error("spanflow couldn't open table t_Span")
		return nil
	}

	err = CreateEventTable(db)
	if err != nil {
		logrus.WithError(err).Error("spanflow couldn't create table t_Event")
		return nil
	}

	eventInserter, err := NewEventInserter(db)
	if err != nil {
		logrus.WithError(err).Error("spanflow couldn't open table t_Event")
		return nil
	}

	return &Olap{
		conn:          db,
		spanInserter:  spanInserter,
		eventInserter: eventInserter,
	}
}

func CreateSpanTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_Span` " +
		"(trace_id BIGINT UNSIGNED, " +
		"span_id BIGINT UNSIGNED, " +
		"parent_id BIGINT UNSIGNED, " +
		"cause_id BIGINT UNSIGNED, " +
		"name VARCHAR(128), " +
		"start_time DATETIME(6), " +
		"end_time DATETIME(6)) " +
		"DISTRIBUTED BY HASH(trace_id) BUCKETS 32 " +
		"PROPERTIES (\"replication_num\" = \"1\");")
	return err
}

func NewSpanInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_Span` "+
		"(trace_id, "+
		"span_id, "+
		"parent_id, "+
		"cause_id, "+
		"name, "+
		"start_time, "+
		"end_time) "+
		"VALUES (?,?,?,?,?,?,?)")
}

func CreateEventTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_Event` " +
		"(trace_id BIGINT UNSIGNED, " +
		"event_id BIGINT UNSIGNED, " +
		"parent_id BIGINT UNSIGNED, " +
		"cause_id BIGINT UNSIGNED, " +
		"cause_implicit BOOLEAN, " +
		"name VARCHAR(128), " +
		"ts DATETIME(6)) " +
		"DISTRIBUTED BY HASH(trace_id) BUCKETS 32 " +
		"PROPERTIES (\"replication_num\" = \"1\");")
	return err
}

func NewEventInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_Event` "+
		"(trace_id, "+
		"event_id, "+
		"parent_id, "+
		"cause_id, "+
		"cause_implicit, "+
		"name, "+
		"ts) "+
		"VALUES (?,?,?,?,?,?,?)")
}

func (o *Olap) InsertSpan(fr *FullRecord) {
	if o == nil {
		return
	}
	err := o.spanInserter.Insert(
		uint64(fr.TraceID),
		uint64(fr.SpanID),
		uint64(fr.ParentID),
		uint64(fr.CauseID),
		fr.Name,
		fr.Start.Format(config.FormatDate6),
		fr.End.Format(config.FormatDate6))
	if err != nil {
		logrus.WithError(err).WithField("span", fr.Name).Warn("spanflow couldn't insert span")
	}
}

func (o *Olap) InsertEvent(fr *FullRecord) {
	if o == nil {
		return
	}
	err := o.eventInserter.Insert(
		uint64(fr.TraceID),
		uint64(fr.SpanID),
		uint64(fr.ParentID),
		uint64(fr.CauseID),
		fr.CauseImplicit,
		fr.Name,
		fr.Start.Format(config.FormatDate6))
	if err != nil {
		logrus.WithError(err).WithField("event", fr.Name).Warn("spanflow couldn't insert event")
	}
}

// SpanRow 对应 t_Span 的一行，给验证查询用。
type SpanRow struct {
	TraceID  uint64 `db:"trace_id"`
	SpanID   uint64 `db:"span_id"`
	ParentID uint64 `db:"parent_id"`
	CauseID  uint64 `db:"cause_id"`
	Name     string `db:"name"`
}

func (o *Olap) SelectSpans(buf *[]*SpanRow) {
	err := o.conn.QueryRows(buf, "SELECT trace_id, span_id, parent_id, cause_id, name FROM `t_Span` ORDER BY start_time")
	if err != nil {
		logrus.WithError(err).Error("spanflow couldn't select spans")
	}
}

func (o *Olap) Flush() {
	if o == nil {
		return
	}
	o.spanInserter.Flush()
	o.eventInserter.Flush()
}

// OlapSink 按记录类型分发到两张表。
type OlapSink struct {
	olap *Olap
}

func (s *OlapSink) Emit(fr *FullRecord) {
	switch fr.Kind {
	case KindSpanEnd:
		s.olap.InsertSpan(fr)
	case KindEvent:
		s.olap.InsertEvent(fr)
	}
}

// InitOlapSink 建表、挂 sink，关停时 Flush。连不上库返回 nil。
func (t *Tracer) InitOlapSink(vp *viper.Viper) *Olap {
	o := NewOlap(vp)
	if o == nil {
		return nil
	}
	t.AddSink(&OlapSink{olap: o})
	t.closers = append(t.closers, func(context.Context) error {
		o.Flush()
		return nil
	})
	return o
}
