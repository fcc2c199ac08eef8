// Package dockerfile renders the Dockerfile used when a project ships none.
//
// All functions are pure (no I/O): the same environment always yields the
// same text.
package dockerfile

import (
	"strings"

	"github.com/pemasak/pws/internal/core/deployment"
)

// header is the dependency-install stage followed by the slim runtime stage.
const header = `
# Multi-stage build for smaller image
FROM python:3.11-alpine AS builder

WORKDIR /app

# Install build dependencies
RUN apk add --no-cache gcc musl-dev

# Install Python packages
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

# Runtime stage
FROM python:3.11-alpine AS runtime

WORKDIR /app

# Copy Python packages from builder
COPY --from=builder /usr/local/lib/python3.11/site-packages /usr/local/lib/python3.11/site-packages
COPY --from=builder /usr/local/bin /usr/local/bin

# Copy app
COPY . .
`

// entrypoint applies pending migrations (failures ignored), then serves on port 80.
const entrypoint = `
# Production setup
EXPOSE 80

# Django production server
CMD ["sh", "-c", "\
    python manage.py migrate --noinput 2>/dev/null || true; \
    WSGI_MODULE=$(python -c \"import glob; files = glob.glob('*/wsgi.py'); print(files[0].split('/')[0] if files else 'wsgi')\"); \
    gunicorn --bind 0.0.0.0:80 --workers 2 $WSGI_MODULE.wsgi:application"]
`

// valueEscaper quotes an ENV value so spaces, quotes and $ survive the build parser.
var valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

// Generate renders the Dockerfile for env, one ENV line per entry in order.
//
// Values must not contain newlines.
//
// Example:
//
//	Generate(deployment.NewEnvironment(map[string]string{"DEBUG": "0"}))
//	// ...
//	// # Environment variables
//	// ENV DEBUG="0"
//	// ...
func Generate(env deployment.Environment) string {
	var b strings.Builder
	b.WriteString(header)

	if len(env) > 0 {
		b.WriteString("\n# Environment variables\n")
		for _, v := range env {
			b.WriteString(EnvLine(v))
			b.WriteByte('\n')
		}
	}

	b.WriteString(entrypoint)
	return b.String()
}

// EnvLine renders a single ENV instruction.
func EnvLine(v deployment.EnvVar) string {
	return `ENV ` + v.Key + `="` + valueEscaper.Replace(v.Value) + `"`
}
