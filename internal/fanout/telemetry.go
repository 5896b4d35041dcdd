package fanout

import "go.opentelemetry.io/otel"

// tracer resolves through the global provider, which is a no-op unless the
// embedding program installs one.
var tracer = otel.Tracer("github.com/windmix/fanbench/internal/fanout")
