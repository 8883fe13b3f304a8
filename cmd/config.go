package cmd

import (
	"context"
	"fmt"
	"strings"

	"cdc-pump/internal/config"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/logger"
	"cdc-pump/internal/validate"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app is everything one command run needs. It is built per run and passed down.
type app struct {
	settings *config.Settings
	logger   *zap.Logger
	fs       afero.Fs
	out      string
}

func newApp() (*app, error) {
	if configReadErr != nil {
		return nil, errs.Configuration("config", configReadErr)
	}

	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:    viper.GetString("log.level"),
		Encoding: viper.GetString("log.format"),
	})
	if err != nil {
		return nil, errs.Configuration("log", err)
	}

	return &app{
		settings: settings,
		logger:   log,
		fs:       afero.NewOsFs(),
		out:      viper.GetString("out"),
	}, nil
}

// runContext bounds the whole command by run.timeout.
func (a *app) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.settings.RunTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.settings.RunTimeout)
}

// selectConnections returns the effective connections, restricted to names when given.
func (a *app) selectConnections(names []string) ([]config.SourceConnection, error) {
	conns := a.settings.EffectiveConnections()
	if len(names) == 0 {
		return conns, nil
	}

	byName := make(map[string]config.SourceConnection, len(conns))
	for _, c := range conns {
		byName[strings.ToLower(c.Name)] = c
	}
	var out []config.SourceConnection
	for _, n := range names {
		c, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, errs.Configuration("only", fmt.Errorf("unknown connection %q", n))
		}
		out = append(out, c)
	}
	return out, nil
}

// matcher recognizes the warehouse databases the provisioning step creates, so the
// warehouse prefix is accepted alongside the validator's own prefixes.
func (a *app) matcher() *validate.Matcher {
	s := a.settings
	prefixes := s.Validator.DatabasePrefixes
	if s.Warehouse.DatabasePrefix != "" {
		prefixes = append(append([]string{}, prefixes...), s.Warehouse.DatabasePrefix)
	}
	return validate.NewMatcher(s.Connections, s.Connector.ServerNamePrefix, prefixes, s.Validator.DatabaseSuffixes)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
