package core

import (
	"context"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"
	"github.com/amoylab/mdprovider/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const textUnsupportedModel = "Unsupported message model type"

// ReqRouter maps model types to domain managers. Every model type is a valid
// key; types without a manager get one closed status on their first request.
type ReqRouter struct {
	pub      *PubContext
	mgrs     map[omm.MsgModelType]DomainMgr
	reported map[omm.MsgModelType]bool
	logger   *zap.Logger
	tracer   *trace.Tracer
}

func newReqRouter(pub *PubContext) *ReqRouter {
	return &ReqRouter{
		pub:      pub,
		mgrs:     make(map[omm.MsgModelType]DomainMgr),
		reported: make(map[omm.MsgModelType]bool),
		logger:   pub.Logger().Named("router"),
		tracer:   trace.NewTracer(cnst.TraceCore),
	}
}

// AddDomainMgr registers mgr for its model type, replacing any earlier one.
func (r *ReqRouter) AddDomainMgr(mgr DomainMgr) {
	if old, ok := r.mgrs[mgr.ModelType()]; ok && old != mgr {
		r.logger.Info("replacing domain manager", logger.Domain(mgr.ModelType()))
	}
	r.mgrs[mgr.ModelType()] = mgr
}

// DomainMgr returns the manager registered for t.
func (r *ReqRouter) DomainMgr(t omm.MsgModelType) (DomainMgr, bool) {
	mgr, ok := r.mgrs[t]
	return mgr, ok
}

// ProcessRequest routes a first request. Without a manager it answers with a
// closed status itself and returns nil.
func (r *ReqRouter) ProcessRequest(ctx context.Context, s *ClientSession, token omm.Token, msg *omm.Msg) StreamItem {
	scope := r.span(ctx, cnst.SpanRouterRequest, s, token, msg)
	defer scope.End()
	r.pub.Metrics().RequestReceived(msg.ModelType.String(), metrics.KindRequest)

	mgr, ok := r.mgrs[msg.ModelType]
	if !ok {
		r.pub.Metrics().UnsupportedRequest(msg.ModelType.String())
		if !r.reported[msg.ModelType] {
			r.reported[msg.ModelType] = true
			r.logger.Warn("request for unsupported model type", logger.Domain(msg.ModelType), logger.Session(s.Handle()))
		}
		resp := omm.NewStatus(msg.ModelType, omm.StreamClosed, omm.DataOk, omm.StatusNotFound, textUnsupportedModel)
		resp.Attrib = msg.Attrib.Clone()
		if err := r.pub.Submit(scope.Ctx, s, token, resp); err != nil {
			scope.Fail(err)
			r.logger.Debug("failed to submit unsupported status", zap.Error(err))
		}
		return nil
	}
	return mgr.ProcessRequest(scope.Ctx, s, token, msg)
}

// ProcessReRequest routes a re-request. Unknown model types are ignored.
func (r *ReqRouter) ProcessReRequest(ctx context.Context, s *ClientSession, token omm.Token, item StreamItem, msg *omm.Msg) {
	mgr, ok := r.mgrs[msg.ModelType]
	if !ok {
		return
	}
	scope := r.span(ctx, cnst.SpanRouterReRequest, s, token, msg)
	defer scope.End()
	r.pub.Metrics().RequestReceived(msg.ModelType.String(), metrics.KindReRequest)
	mgr.ProcessReRequest(scope.Ctx, s, token, item, msg)
}

// ProcessCloseRequest routes a close. Unknown model types are ignored.
func (r *ReqRouter) ProcessCloseRequest(ctx context.Context, s *ClientSession, token omm.Token, item StreamItem, msg *omm.Msg) {
	mgr, ok := r.mgrs[msg.ModelType]
	if !ok {
		return
	}
	scope := r.span(ctx, cnst.SpanRouterClose, s, token, msg)
	defer scope.End()
	r.pub.Metrics().RequestReceived(msg.ModelType.String(), metrics.KindClose)
	mgr.ProcessCloseRequest(scope.Ctx, s, token, item, msg)
}

func (r *ReqRouter) span(ctx context.Context, name string, s *ClientSession, token omm.Token, msg *omm.Msg) *trace.Scope {
	return r.tracer.Start(ctx, name,
		attribute.String(cnst.AttrSession, string(s.Handle())),
		attribute.Int64(cnst.AttrToken, int64(token)),
		attribute.String(cnst.AttrDomain, msg.ModelType.String()),
		attribute.String(cnst.AttrItemName, msg.Name()),
	)
}
