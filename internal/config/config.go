package config

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultLogLevel   = "info"
	DefaultListenAddr = ":3001"

	// DefaultMaxMessageSize must be large enough to carry a full
	// serialized 3D asset as a single websocket frame.
	DefaultMaxMessageSize = 100 << 20 // 100 MiB

	DefaultPongWait   = 60 * time.Second
	DefaultPingPeriod = 25 * time.Second

	DefaultICEAddress  = "stun:stun.l.google.com:19302"
	DefaultICEUsername = ""
	DefaultICEPassword = ""
)

// Config contains all the configuration properties of the server.
type Config struct {
	// ListenAddr is the address:port the HTTP/websocket server binds to.
	ListenAddr string `mapstructure:"listen"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// MaxMessageSize caps the size of a single inbound websocket frame.
	MaxMessageSize int64 `mapstructure:"max-message-size"`

	// PongWait is how long a connection may stay silent before it is
	// considered dead. PingPeriod must be shorter.
	PongWait   time.Duration `mapstructure:"pong-wait"`
	PingPeriod time.Duration `mapstructure:"ping-period"`

	// ICEAddress, ICEUsername and ICEPassword describe the single
	// STUN/TURN server advertised to clients for their RTCPeerConnection.
	ICEAddress  string `mapstructure:"ice-address"`
	ICEUsername string `mapstructure:"ice-username"`
	ICEPassword string `mapstructure:"ice-password"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		LogLevel:       DefaultLogLevel,
		MaxMessageSize: DefaultMaxMessageSize,
		PongWait:       DefaultPongWait,
		PingPeriod:     DefaultPingPeriod,
		ICEAddress:     DefaultICEAddress,
		ICEUsername:    DefaultICEUsername,
		ICEPassword:    DefaultICEPassword,
	}
}

// NewTestConfig returns a config object with default values and a logger
// that writes into the test's output, so it only shows for failed tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.LogLevel = "debug"
	config.logger = NewTestLogger(t)
	return config
}

// ICEServers returns the ICE server list handed to clients for establishing
// their direct peer-to-peer media connections. The list contains a single
// item, with password-based authentication when a username is configured.
func (c *Config) ICEServers() []webrtc.ICEServer {
	server := webrtc.ICEServer{
		URLs: []string{c.ICEAddress},
	}
	if c.ICEUsername != "" {
		server.Username = c.ICEUsername
		server.Credential = c.ICEPassword
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return []webrtc.ICEServer{server}
}

// Logger returns a formatted logrus Entry with the given prefix.
func (c *Config) Logger(prefix string) *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", prefix)
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
