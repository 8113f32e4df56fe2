package cnst

// Tracer names used across the provider
const (
	// TraceCore is the tracer name for request routing
	TraceCore = "mdprovider/core"
	// TraceTransport is the tracer name for the websocket transport
	TraceTransport = "mdprovider/transport"
)

// Span names
const (
	SpanRouterRequest   = "router.request"
	SpanRouterReRequest = "router.rerequest"
	SpanRouterClose     = "router.close"
	SpanWSConnect       = "ws.connect"
)

// Common attribute keys
const (
	AttrSession    = "omm.session"
	AttrToken      = "omm.token"
	AttrDomain     = "omm.domain"
	AttrItemName   = "omm.item"
	AttrService    = "omm.service"
	AttrClientAddr = "client.remote_addr"
)
