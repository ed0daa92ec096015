package observability

import "github.com/tphakala/wildlife-go/internal/logger"

var log = logger.Global().Module("telemetry")
