package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/pmicmon/internal/core/config"
	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/pkg/logutils"
)

// Setup installs the global logger and loads the config into f.Config. It
// returns a function that closes the log file.
//
// In lenient mode nothing fails: an unusable logger is replaced by a no-op
// one, stderr logging is disabled and an unreadable config falls back to
// the defaults.
func (f *Flags) Setup(lenient bool) (func(), error) {
	logger, closer, err := logutils.New(f.LogLevel, f.LogFile)
	switch {
	case err != nil && !lenient:
		return nil, fmt.Errorf("setup logger: %w", err)
	case err != nil, lenient && f.LogFile == "":
		logger, closer = zerolog.Nop(), func() {}
	}
	log.Logger = logger.Hook(logging.ContextHook{})

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		if !lenient {
			closer()
			return nil, fmt.Errorf("load config: %w", err)
		}
		log.Warn().Err(err).Str("path", f.ConfigPath).Msg("unusable config, using defaults")
		defaults := config.DefaultConfig()
		cfg = &defaults
	}
	f.Config = cfg

	return closer, nil
}
