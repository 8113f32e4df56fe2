package core

import (
	"context"

	"github.com/amoylab/mdprovider/pkg/omm"
	"go.uber.org/zap"
)

// DomainMgr owns the response policy for one message model type.
type DomainMgr interface {
	ModelType() omm.MsgModelType
	// ServiceName is the service this domain is published on. Login and
	// directory are not tied to a service.
	ServiceName() (string, bool)
	// ProcessRequest handles the first request on a token. The returned item is
	// tracked by the session; nil means nothing stays open.
	ProcessRequest(ctx context.Context, s *ClientSession, token omm.Token, msg *omm.Msg) StreamItem
	ProcessReRequest(ctx context.Context, s *ClientSession, token omm.Token, item StreamItem, msg *omm.Msg)
	// ProcessCloseRequest is told about a close after the session dropped the item.
	ProcessCloseRequest(ctx context.Context, s *ClientSession, token omm.Token, item StreamItem, msg *omm.Msg)
}

// BaseDomainMgr carries what every domain manager shares. Embed it and
// implement the three Process methods.
type BaseDomainMgr struct {
	model   omm.MsgModelType
	service string
	pub     *PubContext
	logger  *zap.Logger
}

// NewBaseDomainMgr builds the shared part of a manager. An empty service means
// the domain is not tied to a service.
func NewBaseDomainMgr(pub *PubContext, model omm.MsgModelType, service string) BaseDomainMgr {
	return BaseDomainMgr{
		model:   model,
		service: service,
		pub:     pub,
		logger:  pub.Logger().Named(model.String()),
	}
}

func (b *BaseDomainMgr) ModelType() omm.MsgModelType { return b.model }

func (b *BaseDomainMgr) ServiceName() (string, bool) {
	return b.service, b.service != ""
}

func (b *BaseDomainMgr) Pub() *PubContext { return b.pub }

func (b *BaseDomainMgr) Logger() *zap.Logger { return b.logger }

// Service returns the ServiceInfo this manager publishes on, if any.
func (b *BaseDomainMgr) Service() (*ServiceInfo, bool) {
	if b.service == "" {
		return nil, false
	}
	return b.pub.Directory().Get(b.service)
}

// Submit sends msg on token. A final message drops the token from the session
// before it reaches the transport.
func (b *BaseDomainMgr) Submit(ctx context.Context, s *ClientSession, token omm.Token, msg *omm.Msg) error {
	if msg.ModelType == 0 {
		msg.ModelType = b.model
	}
	return b.pub.Submit(ctx, s, token, msg)
}

// EncodeClosedStatus builds the CLOSED/SUSPECT/NOT_FOUND status used to refuse a request.
func (b *BaseDomainMgr) EncodeClosedStatus(text string) *omm.Msg {
	return omm.NewStatus(b.model, omm.StreamClosed, omm.DataSuspect, omm.StatusNotFound, text)
}

// IndicateServiceInitialized marks the manager's service up and accepting
// requests. Managers without a service mark the context's default service.
func (b *BaseDomainMgr) IndicateServiceInitialized() {
	svc, ok := b.Service()
	if !ok {
		svc = b.pub.Service()
	}
	if svc == nil {
		return
	}
	svc.SetUp()
	b.logger.Info("service initialized", zap.String("service", svc.Name))
}
