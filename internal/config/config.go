package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ServiceConfig is loaded once at process start and never mutated after the
// server starts. Handlers read it concurrently without locking.
type ServiceConfig struct {
	InstanceID          string
	InstanceIDGenerated bool
	SharedKey           string
	BuildVersion        string
	Port                int
	ListenHost          string
	AllowedOrigins      []string
	StaticInfoBody      string
	WSPath              string
	PollInterval        time.Duration
	MaxMessageBytes     int64
	WriteTimeout        time.Duration
	LogLevel            string
	LogFormat           string
	AuditDBPath         string
	AuditRetention      time.Duration
	PprofListen         string
	ConfigFile          string
}

const defaultPort = 8080
const defaultWSPath = "/codenerix_pos_client/"
const defaultPollInterval = time.Second
const defaultMaxMessageBytes = 1 << 20
const defaultWriteTimeout = 10 * time.Second
const defaultAuditRetention = 7 * 24 * time.Hour

// ListenAddr is the host:port the service binds to.
func (c ServiceConfig) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// Default returns the configuration used before any source is applied.
func Default() ServiceConfig {
	return ServiceConfig{
		Port:            defaultPort,
		WSPath:          defaultWSPath,
		PollInterval:    defaultPollInterval,
		MaxMessageBytes: defaultMaxMessageBytes,
		WriteTimeout:    defaultWriteTimeout,
		LogLevel:        "info",
		LogFormat:       "text",
		AuditRetention:  defaultAuditRetention,
	}
}

// setting binds one configuration field to its flag, environment variable
// and INI key. Every source yields a raw string that apply parses.
type setting struct {
	flag  string
	env   string
	ini   string
	usage string
	apply func(*ServiceConfig, string) error
}

var settings = []setting{
	{"uuid", "POSBRIDGE_UUID", "uuid", "Instance identifier sent to the device (generated when empty)", func(c *ServiceConfig, v string) error {
		c.InstanceID = strings.TrimSpace(v)
		return nil
	}},
	{"key", "POSBRIDGE_KEY", "key", "Shared key sent to the device", func(c *ServiceConfig, v string) error {
		c.SharedKey = strings.TrimSpace(v)
		return nil
	}},
	{"commit", "POSBRIDGE_COMMIT", "commit", "Build version reported to the device", func(c *ServiceConfig, v string) error {
		c.BuildVersion = strings.TrimSpace(v)
		return nil
	}},
	{"port", "POSBRIDGE_PORT", "port", "Listen port", func(c *ServiceConfig, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid port %q", v)
		}
		c.Port = n
		return nil
	}},
	{"listen-host", "POSBRIDGE_LISTEN_HOST", "listen_host", "Listen host (all interfaces when empty)", func(c *ServiceConfig, v string) error {
		c.ListenHost = strings.TrimSpace(v)
		return nil
	}},
	{"allowed-ips", "POSBRIDGE_ALLOWED_IPS", "allowed_ips", "Comma-separated remote IPs allowed to open the device channel (loopback is always allowed)", func(c *ServiceConfig, v string) error {
		c.AllowedOrigins = splitList(v)
		return nil
	}},
	{"url-home", "POSBRIDGE_URL_HOME", "url_home", "Body returned by GET /", func(c *ServiceConfig, v string) error {
		c.StaticInfoBody = v
		return nil
	}},
	{"ws-path", "POSBRIDGE_WS_PATH", "ws_path", "Websocket route path", func(c *ServiceConfig, v string) error {
		c.WSPath = strings.TrimSpace(v)
		return nil
	}},
	{"poll-interval", "POSBRIDGE_POLL_INTERVAL", "poll_interval", "How often the stop request is checked", durationSetter(func(c *ServiceConfig) *time.Duration { return &c.PollInterval })},
	{"max-message-bytes", "POSBRIDGE_MAX_MESSAGE_BYTES", "max_message_bytes", "Largest inbound websocket frame accepted", func(c *ServiceConfig, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid max message bytes %q", v)
		}
		c.MaxMessageBytes = n
		return nil
	}},
	{"write-timeout", "POSBRIDGE_WRITE_TIMEOUT", "write_timeout", "Deadline for a single outbound frame", durationSetter(func(c *ServiceConfig) *time.Duration { return &c.WriteTimeout })},
	{"log-level", "POSBRIDGE_LOG_LEVEL", "log_level", "Log level: debug|info|warn|error", func(c *ServiceConfig, v string) error {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"log-format", "POSBRIDGE_LOG_FORMAT", "log_format", "Log format: text|json", func(c *ServiceConfig, v string) error {
		c.LogFormat = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"audit-db", "POSBRIDGE_AUDIT_DB", "audit_db", "SQLite path for the access audit log (disabled when empty)", func(c *ServiceConfig, v string) error {
		c.AuditDBPath = strings.TrimSpace(v)
		return nil
	}},
	{"audit-retention", "POSBRIDGE_AUDIT_RETENTION", "audit_retention", "How long access audit entries are kept", durationSetter(func(c *ServiceConfig) *time.Duration { return &c.AuditRetention })},
	{"pprof-listen", "POSBRIDGE_PPROF_LISTEN", "pprof_listen", "Optional pprof listen address", func(c *ServiceConfig, v string) error {
		c.PprofListen = strings.TrimSpace(v)
		return nil
	}},
}

// ParseServeFlags resolves the service configuration from, in increasing
// precedence: defaults, the INI file named by --config or POSBRIDGE_CONFIG,
// POSBRIDGE_* environment variables, and command line flags.
func ParseServeFlags(args []string) (ServiceConfig, error) {
	configPath := envOrDefault("POSBRIDGE_CONFIG", "")
	flagValues := map[string]string{}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", configPath, "INI config file path")
	for _, s := range settings {
		fs.Func(s.flag, s.usage, func(v string) error {
			flagValues[s.flag] = v
			return nil
		})
	}

	cfg := Default()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.ConfigFile = strings.TrimSpace(configPath)
	var fileValues map[string]string
	if cfg.ConfigFile != "" {
		var err error
		fileValues, err = LoadFileValues(cfg.ConfigFile)
		if err != nil {
			return cfg, fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
		}
		if err := checkFileKeys(fileValues); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
		}
	}

	for _, s := range settings {
		if v, ok := fileValues[s.ini]; ok {
			if err := s.apply(&cfg, v); err != nil {
				return cfg, fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
			}
		}
		if v := os.Getenv(s.env); strings.TrimSpace(v) != "" {
			if err := s.apply(&cfg, v); err != nil {
				return cfg, fmt.Errorf("%s: %w", s.env, err)
			}
		}
		if v, ok := flagValues[s.flag]; ok {
			if err := s.apply(&cfg, v); err != nil {
				return cfg, fmt.Errorf("--%s: %w", s.flag, err)
			}
		}
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
		cfg.InstanceIDGenerated = true
	}
	cfg.WSPath = normalizeWSPath(cfg.WSPath)

	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c ServiceConfig) Validate() error {
	if c.SharedKey == "" {
		return errors.New("missing --key or POSBRIDGE_KEY")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	for _, raw := range c.AllowedOrigins {
		if _, err := netip.ParseAddr(raw); err != nil {
			return fmt.Errorf("allowed ip %q is not an IP address", raw)
		}
	}
	if c.WSPath == "/" || !strings.HasPrefix(c.WSPath, "/") || !strings.HasSuffix(c.WSPath, "/") {
		return fmt.Errorf("websocket path %q must be a sub-path such as %s", c.WSPath, defaultWSPath)
	}
	if err := checkWSPathPattern(c.WSPath); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be > 0")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("max message bytes must be > 0")
	}
	if c.AuditRetention <= 0 {
		return errors.New("audit retention must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log level must be one of: debug, info, warn, error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.New("log format must be one of: text, json")
	}
	return nil
}

func checkFileKeys(values map[string]string) error {
	known := make(map[string]struct{}, len(settings))
	for _, s := range settings {
		known[s.ini] = struct{}{}
	}
	var unknown []string
	for key := range values {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
}

func durationSetter(field func(*ServiceConfig) *time.Duration) func(*ServiceConfig, string) error {
	return func(c *ServiceConfig, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*field(c) = d
		return nil
	}
}

func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// checkWSPathPattern rejects paths the server mux cannot route literally.
// Pattern syntax and whitespace would either panic at registration or
// silently match other paths.
func checkWSPathPattern(path string) (err error) {
	if strings.ContainsAny(path, "{}") || strings.IndexFunc(path, unicode.IsSpace) >= 0 {
		return fmt.Errorf("websocket path %q must not contain braces or whitespace", path)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket path %q is not a valid route: %v", path, r)
		}
	}()
	http.NewServeMux().HandleFunc("GET "+path+"{$}", func(http.ResponseWriter, *http.Request) {})
	return nil
}

func normalizeWSPath(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultWSPath
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	if !strings.HasSuffix(v, "/") {
		v += "/"
	}
	return v
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
