// shared/registry/types.go
package registry

// ServiceInfo is the registry entry of one service instance, stored as JSON in the type's hash.
type ServiceInfo struct {
	ServiceID   string            `json:"serviceId"`
	ServiceType string            `json:"serviceType"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	LastSeen    int64             `json:"last_seen"` // Unix milliseconds
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MetadataFunc supplies live metadata attached to every heartbeat.
type MetadataFunc func() map[string]string
