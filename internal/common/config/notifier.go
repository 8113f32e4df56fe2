package config

type (
	// NotifierConfig configures service state change notifications
	NotifierConfig struct {
		Role  string              `yaml:"role"` // receiver, sender, or both
		Type  string              `yaml:"type"` // memory or redis
		Redis NotifierRedisConfig `yaml:"redis"`
	}

	// NotifierRedisConfig represents the configuration for the Redis stream notifier
	NotifierRedisConfig struct {
		ClusterType string `yaml:"cluster_type"`
		Addr        string `yaml:"addr"`
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Topic       string `yaml:"topic"`
	}
)

// NotifierRole represents the role of a notifier
type NotifierRole string

const (
	// RoleReceiver represents a notifier that can only receive updates
	RoleReceiver NotifierRole = "receiver"
	// RoleSender represents a notifier that can only send updates
	RoleSender NotifierRole = "sender"
	// RoleBoth represents a notifier that can both send and receive updates
	RoleBoth NotifierRole = "both"
)
