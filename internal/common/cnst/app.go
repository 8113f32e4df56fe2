package cnst

const (
	AppName     = "mdprovider"
	CommandName = "mdprovider"
)

// Config file names
const (
	ProviderYaml = "mdprovider.yaml"
)

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)

// Store and notifier backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Login authentication modes
const (
	AuthNone   = "none"
	AuthStatic = "static"
	AuthJWT    = "jwt"
)
