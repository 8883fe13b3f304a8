// Package config decodes the run configuration (file, env and flags via viper) into
// Settings. Any problem here is a ConfigurationError and stops the run.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"cdc-pump/internal/errs"
	"cdc-pump/internal/retry"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultConnectionName is used when no connections are configured.
const DefaultConnectionName = "default"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var defaultPorts = map[string]int{
	"mysql":     3306,
	"postgres":  5432,
	"sqlserver": 1433,
	"oracle":    1521,
}

// SourceConnection is one relational source. Name derives every downstream identifier.
type SourceConnection struct {
	Name        string   `mapstructure:"name" json:"name"`
	Driver      string   `mapstructure:"driver" json:"driver"`
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	User        string   `mapstructure:"user" json:"user"`
	Secret      string   `mapstructure:"secret" json:"-"`
	Database    string   `mapstructure:"database" json:"database"`
	Tables      []string `mapstructure:"tables" json:"tables,omitempty"`
	TopicPrefix string   `mapstructure:"topic_prefix" json:"topic_prefix,omitempty"`
}

type ConnectorSettings struct {
	URL                  string        `mapstructure:"url"`
	ServerNamePrefix     string        `mapstructure:"server_name_prefix"`
	ServerIDBase         uint32        `mapstructure:"server_id_base"`
	ServerIDRange        uint32        `mapstructure:"server_id_range"`
	SnapshotMode         string        `mapstructure:"snapshot_mode"`
	DecimalHandlingMode  string        `mapstructure:"decimal_handling_mode"`
	BinaryHandlingMode   string        `mapstructure:"binary_handling_mode"`
	TimePrecisionMode    string        `mapstructure:"time_precision_mode"`
	IncludeSchemaChanges bool          `mapstructure:"include_schema_changes"`
	HistoryBootstrap     string        `mapstructure:"history_bootstrap_servers"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

type BrokerSettings struct {
	Brokers  []string      `mapstructure:"brokers"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Version  string        `mapstructure:"version"`
}

type WarehouseSettings struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	User                string        `mapstructure:"user"`
	Password            string        `mapstructure:"password"`
	Database            string        `mapstructure:"database"`
	DatabasePrefix      string        `mapstructure:"database_prefix"`
	RegistryDatabase    string        `mapstructure:"registry_database"`
	KafkaBrokerList     string        `mapstructure:"kafka_broker_list"`
	ConsumerGroupPrefix string        `mapstructure:"consumer_group_prefix"`
	AnalyticsSuffix     string        `mapstructure:"analytics_suffix"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
}

type ValidatorSettings struct {
	DatabasePrefixes []string      `mapstructure:"database_prefixes"`
	DatabaseSuffixes []string      `mapstructure:"database_suffixes"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	InitialDelay     time.Duration `mapstructure:"initial_delay"`
	BackoffFactor    float64       `mapstructure:"backoff_factor"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	AttemptTimeout   time.Duration `mapstructure:"attempt_timeout"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
}

// Policy is the shared retry primitive configured for this run.
func (v ValidatorSettings) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    v.MaxAttempts,
		InitialDelay:   v.InitialDelay,
		MaxDelay:       v.MaxDelay,
		Multiplier:     v.BackoffFactor,
		AttemptTimeout: v.AttemptTimeout,
	}
}

type Settings struct {
	Connections []SourceConnection
	Fallback    SourceConnection
	Connector   ConnectorSettings
	Broker      BrokerSettings
	Warehouse   WarehouseSettings
	Validator   ValidatorSettings
	RunTimeout  time.Duration
}

// EffectiveConnections returns the configured connections, or the single synthetic
// "default" connection when none are configured.
func (s *Settings) EffectiveConnections() []SourceConnection {
	if len(s.Connections) > 0 {
		return s.Connections
	}
	fb := s.Fallback
	fb.Name = DefaultConnectionName
	return []SourceConnection{fb}
}

// SetDefaults registers every documented default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("fallback.driver", "mysql")
	v.SetDefault("fallback.host", "localhost")
	v.SetDefault("fallback.port", 3306)
	v.SetDefault("fallback.user", "root")
	v.SetDefault("fallback.database", "default")

	v.SetDefault("connector.url", "http://localhost:8083")
	v.SetDefault("connector.server_name_prefix", "dbserver")
	v.SetDefault("connector.server_id_base", 184000)
	v.SetDefault("connector.server_id_range", 10000)
	v.SetDefault("connector.snapshot_mode", "initial")
	v.SetDefault("connector.decimal_handling_mode", "string")
	v.SetDefault("connector.binary_handling_mode", "base64")
	v.SetDefault("connector.time_precision_mode", "connect")
	v.SetDefault("connector.include_schema_changes", false)
	v.SetDefault("connector.history_bootstrap_servers", "kafka:9092")
	v.SetDefault("connector.timeout", 10*time.Second)

	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.client_id", "cdc-pump")
	v.SetDefault("broker.timeout", 10*time.Second)
	v.SetDefault("broker.version", "3.6.0")

	v.SetDefault("warehouse.host", "localhost")
	v.SetDefault("warehouse.port", 9000)
	v.SetDefault("warehouse.user", "default")
	v.SetDefault("warehouse.database", "default")
	v.SetDefault("warehouse.database_prefix", "")
	v.SetDefault("warehouse.registry_database", "cdc_registry")
	v.SetDefault("warehouse.kafka_broker_list", "kafka:9092")
	v.SetDefault("warehouse.consumer_group_prefix", "clickhouse")
	v.SetDefault("warehouse.analytics_suffix", "_analytics")
	v.SetDefault("warehouse.dial_timeout", 10*time.Second)

	v.SetDefault("validator.database_prefixes", []string{"fgeo_"})
	v.SetDefault("validator.database_suffixes", []string{"_raw", "_analytics"})
	v.SetDefault("validator.max_attempts", 3)
	v.SetDefault("validator.initial_delay", time.Second)
	v.SetDefault("validator.backoff_factor", 2.0)
	v.SetDefault("validator.max_delay", 30*time.Second)
	v.SetDefault("validator.attempt_timeout", 10*time.Second)
	v.SetDefault("validator.check_timeout", 60*time.Second)

	v.SetDefault("run.timeout", 5*time.Minute)
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		jsonStringToSliceHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// jsonStringToSliceHook lets a list be given as one JSON value, e.g. from an
// environment variable.
func jsonStringToSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if !strings.HasPrefix(s, "[") {
			return data, nil
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("invalid JSON list: %w", err)
		}
		return out, nil
	}
}

type document struct {
	Connections []SourceConnection `mapstructure:"connections"`
	Fallback    SourceConnection   `mapstructure:"fallback"`
	Connector   ConnectorSettings  `mapstructure:"connector"`
	Broker      BrokerSettings     `mapstructure:"broker"`
	Warehouse   WarehouseSettings  `mapstructure:"warehouse"`
	Validator   ValidatorSettings  `mapstructure:"validator"`
	Run         struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"run"`
}

// Load decodes and validates Settings from v. Defaults, file values, env and bound
// flags are merged by viper before decoding.
func Load(v *viper.Viper) (*Settings, error) {
	var doc document
	if err := v.Unmarshal(&doc, decodeHook()); err != nil {
		return nil, errs.Configuration("", err)
	}

	s := &Settings{
		Connections: doc.Connections,
		Fallback:    doc.Fallback,
		Connector:   doc.Connector,
		Broker:      doc.Broker,
		Warehouse:   doc.Warehouse,
		Validator:   doc.Validator,
		RunTimeout:  doc.Run.Timeout,
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) normalize() error {
	seen := make(map[string]bool)
	for i := range s.Connections {
		c := &s.Connections[i]
		key := fmt.Sprintf("connections[%d]", i)

		if err := fillConnection(c); err != nil {
			return errs.Configuration(key, err)
		}
		if c.Name == DefaultConnectionName {
			return errs.Configuration(key, fmt.Errorf("connection name %q is reserved", DefaultConnectionName))
		}
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return errs.Configuration(key, fmt.Errorf("duplicate connection name %q", c.Name))
		}
		seen[lower] = true
	}

	fb := s.Fallback
	fb.Name = DefaultConnectionName
	if err := fillConnection(&fb); err != nil {
		return errs.Configuration("fallback", err)
	}
	fb.Name = ""
	s.Fallback = fb

	if s.Connector.ServerIDRange == 0 {
		return errs.Configuration("connector.server_id_range", fmt.Errorf("must be positive"))
	}
	if !namePattern.MatchString(s.Connector.ServerNamePrefix) {
		return errs.Configuration("connector.server_name_prefix", fmt.Errorf("invalid prefix %q", s.Connector.ServerNamePrefix))
	}
	if s.Validator.MaxAttempts < 1 {
		return errs.Configuration("validator.max_attempts", fmt.Errorf("must be at least 1"))
	}
	if s.Validator.AttemptTimeout > s.Validator.CheckTimeout {
		return errs.Configuration("validator.attempt_timeout", fmt.Errorf("%s exceeds check_timeout %s", s.Validator.AttemptTimeout, s.Validator.CheckTimeout))
	}
	if s.RunTimeout > 0 && s.Validator.CheckTimeout > s.RunTimeout {
		return errs.Configuration("validator.check_timeout", fmt.Errorf("%s exceeds run.timeout %s", s.Validator.CheckTimeout, s.RunTimeout))
	}
	return nil
}

func fillConnection(c *SourceConnection) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("connection name is required")
	}
	if !namePattern.MatchString(c.Name) {
		return fmt.Errorf("connection name %q must match %s", c.Name, namePattern)
	}
	if c.TopicPrefix != "" && !namePattern.MatchString(c.TopicPrefix) {
		return fmt.Errorf("topic prefix %q must match %s", c.TopicPrefix, namePattern)
	}

	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "":
		c.Driver = "mysql"
	case "mssql":
		c.Driver = "sqlserver"
	case "postgresql":
		c.Driver = "postgres"
	}
	port, ok := defaultPorts[c.Driver]
	if !ok {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Port == 0 {
		c.Port = port
	}
	if c.Host == "" {
		return fmt.Errorf("connection %q: host is required", c.Name)
	}
	if c.Database == "" {
		c.Database = c.Name
	}
	return nil
}
