package kit

import "go.uber.org/zap"

// NewLogger builds the production logger every service starts from. The
// service name rides along as an initial field; an unparseable level falls
// back to info so a bad env var never silences a service.
func NewLogger(service, level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	l, _ := cfg.Build()
	return l
}
