// shared/registry/constants.go
package registry

const (
	// RedisRegistryHashPrefix prefixes the hash holding every instance of a service type: services:<serviceType>
	RedisRegistryHashPrefix = "services:"

	// CoordinatorServiceType is the registry type under which coordinator instances announce themselves.
	CoordinatorServiceType = "coordinator-service"
)
