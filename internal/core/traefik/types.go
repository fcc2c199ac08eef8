package traefik

// =============================================================================
// Traefik Label Generation Types
// =============================================================================

// LabelParams contains parameters for generating Traefik labels.
type LabelParams struct {
	// RouterName names both the router and the service (the container name).
	RouterName string

	// Hostname is the domain/hostname for routing (e.g., "alice-blog.example.org").
	Hostname string

	// Port is the container port to route traffic to.
	Port int

	// EntryPoint is the Traefik entrypoint the router listens on (e.g., "websecure").
	EntryPoint string

	// CertResolver issues the TLS certificate. Empty disables the label.
	CertResolver string

	// Network pins the Docker network Traefik uses to reach the container. Optional.
	Network string
}

// Default routing values.
const (
	DefaultEntryPoint   = "websecure"
	DefaultCertResolver = "letsencrypt"
)
