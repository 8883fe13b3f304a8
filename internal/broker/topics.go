// Package broker lists Kafka topics through the sarama cluster admin.
package broker

import (
	"context"
	"fmt"
	"sort"

	"cdc-pump/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type AdminFactory func(addrs []string, cfg *sarama.Config) (sarama.ClusterAdmin, error)

// TopicLister opens a short-lived admin connection per call.
type TopicLister struct {
	settings config.BrokerSettings
	newAdmin AdminFactory
	logger   *zap.Logger
}

func NewTopicLister(settings config.BrokerSettings, newAdmin AdminFactory, logger *zap.Logger) *TopicLister {
	if newAdmin == nil {
		newAdmin = sarama.NewClusterAdmin
	}
	return &TopicLister{settings: settings, newAdmin: newAdmin, logger: logger.Named("broker")}
}

// SaramaConfig builds the client configuration for the admin connection.
func SaramaConfig(s config.BrokerSettings) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = s.ClientID
	if s.Timeout > 0 {
		cfg.Net.DialTimeout = s.Timeout
		cfg.Net.ReadTimeout = s.Timeout
		cfg.Admin.Timeout = s.Timeout
	}
	if s.Version != "" {
		v, err := sarama.ParseKafkaVersion(s.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid broker version %q: %w", s.Version, err)
		}
		cfg.Version = v
	}
	cfg.Metadata.Retry.Max = 0
	return cfg, nil
}

// Topics returns every topic name on the cluster, sorted.
func (l *TopicLister) Topics(ctx context.Context) ([]string, error) {
	type result struct {
		names []string
		err   error
	}
	done := make(chan result, 1)

	go func() {
		names, err := l.list()
		done <- result{names: names, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.names, r.err
	}
}

func (l *TopicLister) list() ([]string, error) {
	cfg, err := SaramaConfig(l.settings)
	if err != nil {
		return nil, err
	}
	admin, err := l.newAdmin(l.settings.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to brokers %v: %w", l.settings.Brokers, err)
	}
	defer func() {
		if err := admin.Close(); err != nil {
			l.logger.Debug("failed to close cluster admin", zap.Error(err))
		}
	}()

	details, err := admin.ListTopics()
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	names := make([]string, 0, len(details))
	for name := range details {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
