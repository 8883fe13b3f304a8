package validate

import (
	"regexp"
	"strings"

	"cdc-pump/internal/config"
	"cdc-pump/internal/warehouse"

	"github.com/samber/lo"
)

// Matcher derives the expected topic and database names from the configured
// connections. With no connections it falls back to generic patterns.
type Matcher struct {
	connections   []config.SourceConnection
	defaultPrefix string
	dbPrefixes    []string
	dbSuffixes    []string
	generic       *regexp.Regexp
}

func NewMatcher(connections []config.SourceConnection, serverNamePrefix string, dbPrefixes, dbSuffixes []string) *Matcher {
	return &Matcher{
		connections:   connections,
		defaultPrefix: serverNamePrefix,
		dbPrefixes:    lo.Uniq(append([]string{""}, dbPrefixes...)),
		dbSuffixes:    lo.Uniq(append([]string{""}, dbSuffixes...)),
		generic:       regexp.MustCompile("^" + regexp.QuoteMeta(serverNamePrefix) + `_[A-Za-z0-9_]+\.`),
	}
}

func (m *Matcher) prefix(conn config.SourceConnection) string {
	if conn.TopicPrefix != "" {
		return conn.TopicPrefix
	}
	return m.defaultPrefix
}

// IsInternalTopic reports broker, registry, Connect and stream-processing topics.
func IsInternalTopic(topic string) bool {
	return strings.HasPrefix(topic, "__") ||
		topic == "_schemas" ||
		strings.HasPrefix(topic, "_confluent") ||
		strings.HasPrefix(topic, "connect-") ||
		strings.HasPrefix(topic, "schema-changes.") ||
		strings.HasSuffix(topic, "-changelog")
}

// TopicMatches reports whether topic carries change events for a configured connection.
func (m *Matcher) TopicMatches(topic string) bool {
	if IsInternalTopic(topic) {
		return false
	}
	if len(m.connections) == 0 {
		return m.generic.MatchString(topic)
	}
	for _, c := range m.connections {
		if strings.Contains(topic, m.prefix(c)+"_"+c.Name+".") {
			return true
		}
	}
	return false
}

// TopicPatterns describes what TopicMatches accepts, for reports.
func (m *Matcher) TopicPatterns() []string {
	if len(m.connections) == 0 {
		return []string{m.generic.String()}
	}
	return lo.Map(m.connections, func(c config.SourceConnection, _ int) string {
		return "*" + m.prefix(c) + "_" + c.Name + ".*"
	})
}

func isSystemDatabase(name string) bool {
	return lo.Contains(warehouse.SystemDatabases, name)
}

// DatabaseMatches reports whether database belongs to a configured connection, by
// its name or a prefix/suffix decoration of it.
func (m *Matcher) DatabaseMatches(database string) bool {
	if isSystemDatabase(database) {
		return false
	}
	if len(m.connections) == 0 {
		return true
	}
	return lo.Contains(m.DatabaseNames(), database)
}

// DatabaseNames lists every database name derived from the connections.
func (m *Matcher) DatabaseNames() []string {
	var names []string
	for _, c := range m.connections {
		for _, p := range m.dbPrefixes {
			for _, s := range m.dbSuffixes {
				names = append(names, p+c.Name+s)
			}
		}
	}
	return lo.Uniq(names)
}
