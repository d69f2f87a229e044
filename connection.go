package widetable

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/meta"
	"github.com/myuser/widetable/internal/schema"
)

// FamilyOptions is the resolved option set of a column family.
type FamilyOptions = schema.FamilyOptions

// FamilyOverrides overlays caller values on the family defaults.
type FamilyOverrides = schema.Overrides

// Defaults applied to a zero Config.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 9090
	DefaultTransport = "buffered"
	DefaultCompat    = "0.96"
	DefaultSeparator = "_"
)

// Config describes a connection. Host, Port and the table prefix form the
// connection identity; the rest is carried for callers that inspect it.
type Config struct {
	Host                 string
	Port                 int
	Timeout              time.Duration
	TablePrefix          string
	TablePrefixSeparator string
	Compat               string
	Transport            string

	// Clock defaults to SystemClock.
	Clock Clock
	// Logger receives table lifecycle events when set.
	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TablePrefixSeparator == "" {
		c.TablePrefixSeparator = DefaultSeparator
	}
	if c.Compat == "" {
		c.Compat = DefaultCompat
	}
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	return c
}

// ID returns the identity string host:port/prefix, where prefix includes
// the separator and is empty without a table prefix.
func (c Config) ID() string {
	c = c.withDefaults()
	prefix := ""
	if c.TablePrefix != "" {
		prefix = c.TablePrefix + c.TablePrefixSeparator
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, prefix)
}

// Connection owns a catalog of tables. Create one per identity and pass it
// to whoever needs it, or share instances through a ConnectionCache.
type Connection struct {
	cfg     Config
	catalog *meta.Store

	mu   sync.Mutex
	open bool
}

// NewConnection returns an open connection with an empty catalog.
func NewConnection(cfg Config) *Connection {
	return &Connection{
		cfg:     cfg.withDefaults(),
		catalog: meta.NewStore(),
		open:    true,
	}
}

// Config returns the resolved configuration.
func (c *Connection) Config() Config {
	return c.cfg
}

func (c *Connection) ID() string {
	return c.cfg.ID()
}

func (c *Connection) Open() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
}

// Close marks the connection closed. Tables stay readable; there is no
// transport to release.
func (c *Connection) Close() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Connection) qualify(name string) string {
	if c.cfg.TablePrefix == "" {
		return name
	}
	return c.cfg.TablePrefix + c.cfg.TablePrefixSeparator + name
}

func (c *Connection) logf(format string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Printf(format, args...)
	}
}

func (c *Connection) now() int64 {
	return millis(c.cfg.Clock)
}

// Table returns a handle on name with the table prefix applied. The table
// does not have to exist yet; operations check on every call.
func (c *Connection) Table(name string) *Table {
	return &Table{name: c.qualify(name), conn: c}
}

// RawTable returns a handle on name without applying the table prefix.
func (c *Connection) RawTable(name string) *Table {
	return &Table{name: name, conn: c}
}

// Tables lists the tables under this connection's prefix, prefix removed,
// in ascending order.
func (c *Connection) Tables() []string {
	names := c.catalog.Names()
	if c.cfg.TablePrefix == "" {
		return names
	}

	prefix := c.cfg.TablePrefix + c.cfg.TablePrefixSeparator
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, strings.TrimPrefix(n, prefix))
		}
	}
	return out
}

// CreateTable registers a new, enabled table with the given families.
func (c *Connection) CreateTable(name string, families map[string]FamilyOverrides) error {
	full := c.qualify(name)
	if err := c.catalog.Create(full, families); err != nil {
		return errors.Trace(err)
	}
	c.logf("created table %s with families %v", full, familyNames(families))
	return nil
}

// DeleteTable drops a table and its cells. The table must be disabled
// unless disable is set.
func (c *Connection) DeleteTable(name string, disable bool) error {
	full := c.qualify(name)
	if disable {
		if err := c.catalog.SetEnabled(full, false); err != nil {
			return errors.Trace(err)
		}
	}
	if err := c.catalog.Drop(full); err != nil {
		return errors.Trace(err)
	}
	c.logf("deleted table %s", full)
	return nil
}

func (c *Connection) EnableTable(name string) error {
	full := c.qualify(name)
	if err := c.catalog.SetEnabled(full, true); err != nil {
		return errors.Trace(err)
	}
	c.logf("enabled table %s", full)
	return nil
}

func (c *Connection) DisableTable(name string) error {
	full := c.qualify(name)
	if err := c.catalog.SetEnabled(full, false); err != nil {
		return errors.Trace(err)
	}
	c.logf("disabled table %s", full)
	return nil
}

func (c *Connection) IsTableEnabled(name string) (bool, error) {
	on, err := c.catalog.Enabled(c.qualify(name))
	return on, errors.Trace(err)
}

// CompactTable accepts a compaction request for an existing table. Versions
// are pruned on write, so there is nothing left to compact.
func (c *Connection) CompactTable(name string, major bool) error {
	full := c.qualify(name)
	if _, err := c.catalog.Lookup(full); err != nil {
		return errors.Trace(err)
	}
	c.logf("compacted table %s (major=%v)", full, major)
	return nil
}

func familyNames(m map[string]FamilyOverrides) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ConnectionCache hands out one Connection per identity. It replaces global
// instance caching: the caller owns the cache and decides its scope.
type ConnectionCache struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

func NewConnectionCache() *ConnectionCache {
	return &ConnectionCache{conns: make(map[string]*Connection)}
}

// Get returns the cached connection for cfg's identity, creating it on
// first use.
func (cc *ConnectionCache) Get(cfg Config) *Connection {
	id := cfg.ID()
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if conn, ok := cc.conns[id]; ok {
		return conn
	}
	conn := NewConnection(cfg)
	cc.conns[id] = conn
	return conn
}

// Forget drops the cached connection for cfg's identity.
func (cc *ConnectionCache) Forget(cfg Config) {
	cc.mu.Lock()
	delete(cc.conns, cfg.ID())
	cc.mu.Unlock()
}

func (cc *ConnectionCache) Len() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.conns)
}
