package grid

import (
	"context"

	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/metrics"
)

// deps is shared by the components of one Grid. Only Grid constructs it.
type deps struct {
	ctx     context.Context
	backend Backend
	log     *zap.Logger
	metrics *metrics.Collector
	notices []Notice
}

func (d *deps) notify(level NoticeLevel, text string) {
	d.notices = append(d.notices, Notice{Level: level, Text: text})
}

func (d *deps) fail(op string, err error) {
	d.metrics.Failure(op)
	d.log.Warn("backend request failed", zap.String("op", op), zap.Error(err))
	d.notify(NoticeError, serviceErr(op, err).Error())
}

func (d *deps) superseded(t Token) {
	d.metrics.Superseded(string(t.Kind))
	d.log.Debug("discarding superseded response",
		zap.String("kind", string(t.Kind)),
		zap.String("target", t.TargetID),
		zap.Uint64("seq", t.Seq))
}
