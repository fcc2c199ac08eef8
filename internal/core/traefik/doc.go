// Package traefik provides pure functions for generating Traefik reverse proxy labels.
//
// This package contains the functional core logic for generating Docker container
// labels that configure Traefik routing. All functions are pure (no I/O, no side
// effects). The reverse proxy itself runs outside this system and only reads the labels.
//
// # Functions
//
//   - GenerateLabels: Generate Traefik labels for HTTPS routing
//
// # Usage
//
// The container plan merges these labels so the proxy can route the project hostname:
//
//	labels := traefik.GenerateLabels(traefik.LabelParams{
//	    RouterName:   "alice-blog",
//	    Hostname:     "alice-blog.example.org",
//	    Port:         80,
//	    EntryPoint:   "websecure",
//	    CertResolver: "letsencrypt",
//	})
package traefik
