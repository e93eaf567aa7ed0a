package constants

const (
	ContextRequestIDKey    = "request_id"
	ContextRequestTimeKey  = "request_time"
	ContextRoutePrefixKey  = "route_prefix"
	ContextClientIPKey     = "client_ip"
	ContextPrincipalKey    = "principal"
)
