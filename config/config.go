package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultHTTPAddr is the listen address when neither config nor PORT set one.
	DefaultHTTPAddr = ":3001"

	EnvPrefix = "SIGNALING"
)

// Fallback policies for events whose recipient can not be resolved.
const (
	FallbackBroadcast = "broadcast"
	FallbackDrop      = "drop"
	FallbackReject    = "reject"
)

// Call transition policies, read by the call tracker.
const (
	CallPolicyPermissive = "permissive"
	CallPolicyStrict     = "strict"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	WS       WSConfig       `mapstructure:"ws"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Calls    CallsConfig    `mapstructure:"calls"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Log      LogConfig      `mapstructure:"log"`

	v        *viper.Viper
	watchMu  sync.Mutex
	watchers []func(*Config)
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WSConfig struct {
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
}

// PingPeriod must be less than PongWait.
func (c WSConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

type DeliveryConfig struct {
	MailboxSize int           `mapstructure:"mailbox_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type RoutingConfig struct {
	Fallback       string `mapstructure:"fallback"`
	ReadyThreshold int    `mapstructure:"ready_threshold"`
}

type CallsConfig struct {
	Policy     string        `mapstructure:"policy"`
	MaxTracked int           `mapstructure:"max_tracked"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type AMQPConfig struct {
	URL          string        `mapstructure:"url"`
	InboundTopic string        `mapstructure:"inbound_topic"`
	CallsTopic   string        `mapstructure:"calls_topic"`
	PoisonTopic  string        `mapstructure:"poison_topic"`
	BreakerOpen  time.Duration `mapstructure:"breaker_open"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Otel routes records through the OpenTelemetry slog bridge.
	Otel bool `mapstructure:"otel"`
}

// Flags declares every setting with its default. Parsed flags override file and env.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)

	fs.String("http.addr", DefaultHTTPAddr, "HTTP listen address")
	fs.StringSlice("http.allowed_origins", []string{"*"}, "Allowed CORS / websocket origins")
	fs.Duration("http.read_timeout", 15*time.Second, "HTTP read header timeout")
	fs.Duration("http.shutdown_timeout", 10*time.Second, "Graceful shutdown timeout")

	fs.Int64("ws.max_message_size", 64*1024, "Maximum inbound websocket frame size")
	fs.Duration("ws.write_wait", 10*time.Second, "Time allowed to write a frame")
	fs.Duration("ws.pong_wait", 60*time.Second, "Time allowed to read the next pong")

	fs.Int("delivery.mailbox_size", 256, "Outbound buffer per connection")
	fs.Duration("delivery.send_timeout", 50*time.Millisecond, "Wait on a saturated mailbox before eviction")
	fs.Duration("delivery.poll_timeout", 30*time.Second, "Long-poll hold time")

	fs.String("routing.fallback", FallbackBroadcast, "Unresolvable recipient policy: broadcast|drop|reject")
	fs.Int("routing.ready_threshold", 2, "Members that make a room ready")

	fs.String("calls.policy", CallPolicyPermissive, "Call transition policy: permissive|strict")
	fs.Int("calls.max_tracked", 10000, "Maximum tracked calls")
	fs.Duration("calls.ttl", time.Hour, "Retention of a call after its last update")

	fs.String("amqp.url", "", "AMQP broker URL, in-memory bus when empty")
	fs.String("amqp.inbound_topic", "im_signaling.inbound", "Topic of externally injected events")
	fs.String("amqp.calls_topic", "im_signaling.calls", "Topic of exported call transitions")
	fs.String("amqp.poison_topic", "im_signaling.inbound.poison", "Topic of inbound events that can not be processed")
	fs.Duration("amqp.breaker_open", 30*time.Second, "Publisher circuit breaker open state duration")

	fs.String("log.level", "info", "Log level")
	fs.Bool("log.otel", false, "Route logs through OpenTelemetry")

	return fs
}

// LoadConfig merges, by increasing precedence: flag defaults, config file,
// .env and environment (SIGNALING_HTTP_ADDR, ..., PORT), explicitly set flags.
func LoadConfig(path string, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	flags := Flags()
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{v: v}
	if err := cfg.decode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode() error {
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	// [PLATFORM] Hosting platforms hand out the port only.
	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}

	return c.Validate()
}

// Validate normalizes policy names the way the runtime parsers read them and
// rejects values the hub can not run with.
func (c *Config) Validate() error {
	c.Routing.Fallback = normalizePolicy(c.Routing.Fallback)
	c.Calls.Policy = normalizePolicy(c.Calls.Policy)
	if c.Calls.Policy == "" {
		c.Calls.Policy = CallPolicyPermissive
	}

	switch c.Routing.Fallback {
	case FallbackBroadcast, FallbackDrop, FallbackReject:
	default:
		return fmt.Errorf("routing.fallback: unknown policy %q", c.Routing.Fallback)
	}
	switch c.Calls.Policy {
	case CallPolicyPermissive, CallPolicyStrict:
	default:
		return fmt.Errorf("calls.policy: unknown policy %q", c.Calls.Policy)
	}
	if c.Routing.ReadyThreshold < 1 {
		return fmt.Errorf("routing.ready_threshold: must be positive, got %d", c.Routing.ReadyThreshold)
	}
	if c.WS.PongWait <= 0 {
		return fmt.Errorf("ws.pong_wait: must be positive")
	}
	if c.AMQP.PoisonTopic != "" && c.AMQP.PoisonTopic == c.AMQP.InboundTopic {
		return fmt.Errorf("amqp.poison_topic: must differ from amqp.inbound_topic %q", c.AMQP.InboundTopic)
	}
	return nil
}

func normalizePolicy(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// OnChange registers fn for hot reloads of the config file. The first
// registration starts the file watcher. Without a config file it is a no-op.
func (c *Config) OnChange(logger *slog.Logger, fn func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	c.watchers = append(c.watchers, fn)
	if len(c.watchers) > 1 {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{v: c.v}
		if err := next.decode(); err != nil {
			logger.Warn("CONFIG_RELOAD_REJECTED", "file", e.Name, "err", err)
			return
		}
		logger.Info("CONFIG_RELOADED", "file", e.Name, "op", e.Op.String())

		c.watchMu.Lock()
		watchers := slices.Clone(c.watchers)
		c.watchMu.Unlock()

		for _, w := range watchers {
			w(next)
		}
	})
	c.v.WatchConfig()
}
