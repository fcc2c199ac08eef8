package traefik

import "fmt"

// =============================================================================
// Traefik Label Generation Functions
// =============================================================================

// GenerateLabels generates Traefik reverse proxy labels for a tenant container.
//
// The generated labels configure Traefik to route HTTPS traffic to the container:
//   - Enables Traefik for the container
//   - Creates a router with a Host rule for the hostname on the entrypoint
//   - Requests a certificate from the resolver
//   - Configures the service loadbalancer port
//
// Router and service share the RouterName, so each container gets exactly one of each.
//
// Example:
//
//	labels := GenerateLabels(LabelParams{
//	    RouterName:   "alice-blog",
//	    Hostname:     "alice-blog.example.org",
//	    Port:         80,
//	    EntryPoint:   "websecure",
//	    CertResolver: "letsencrypt",
//	})
//	// Returns:
//	// {
//	//   "traefik.enable": "true",
//	//   "traefik.http.routers.alice-blog.rule": "Host(`alice-blog.example.org`)",
//	//   "traefik.http.routers.alice-blog.entrypoints": "websecure",
//	//   "traefik.http.routers.alice-blog.tls.certresolver": "letsencrypt",
//	//   "traefik.http.services.alice-blog.loadbalancer.server.port": "80",
//	// }
func GenerateLabels(params LabelParams) map[string]string {
	name := params.RouterName

	entryPoint := params.EntryPoint
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}

	labels := map[string]string{
		"traefik.enable": "true",

		fmt.Sprintf("traefik.http.routers.%s.rule", name):        HostRule(params.Hostname),
		fmt.Sprintf("traefik.http.routers.%s.entrypoints", name): entryPoint,

		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", name): fmt.Sprintf("%d", params.Port),
	}

	if params.CertResolver != "" {
		labels[fmt.Sprintf("traefik.http.routers.%s.tls.certresolver", name)] = params.CertResolver
	}

	if params.Network != "" {
		labels["traefik.docker.network"] = params.Network
	}

	return labels
}

// HostRule returns the router rule matching a single hostname.
func HostRule(hostname string) string {
	return fmt.Sprintf("Host(`%s`)", hostname)
}
