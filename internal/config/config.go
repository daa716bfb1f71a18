// Package config loads the TOML configuration of the server and the client.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/utils/bytesutil"
	"tpa_auth/internal/utils/log"

	"github.com/BurntSushi/toml"
)

const (
	defaultHost       = "localhost"
	defaultPort       = 12345
	defaultAlgorithm  = "AES"
	defaultKey        = "00112233445566778899AABBCCDDEEFF"
	defaultRSAKeySize = 2048
	defaultLogLevel   = "INFO"
	defaultAdmin      = "localhost:9090"
	defaultWSPath     = "/channel"
	defaultMaxEntries = 100
	defaultTTL        = 24 * 60 * 60
	defaultDatabase   = "tpa"
)

// Network and UI values.
const (
	NetworkTCP = "tcp"
	NetworkWS  = "ws"

	UIAuto  = "auto"
	UIPlain = "plain"
	UITUI   = "tui"
)

type (
	// Key is the cryptographic material shared by both ends.
	Key struct {
		// Algorithm is one of DES, TDES, AES, TKTDES or RSA.
		Algorithm string

		// Key is the pre-shared key in hex, separators allowed.
		Key string

		// PrivateKeyFile is a PEM RSA private key. When empty an RSA key of
		// RSAKeySize bits is generated at start-up.
		PrivateKeyFile string
		RSAKeySize     int
	}

	Logging struct {
		Disable  bool
		File     string
		Level    string
		Encoding string
	}

	// Redis enables the message journal when Addr is set.
	Redis struct {
		Addr       string
		Password   string
		DB         int
		MaxEntries int64
		// TTL of a peer's journal in seconds.
		TTL int
	}

	// Mongo enables the session audit when URI is set.
	Mongo struct {
		URI      string
		Database string
	}

	// Admin is the HTTP endpoint serving status, metrics and the WebSocket
	// channel.
	Admin struct {
		Disable bool
		Address string
	}

	Listen struct {
		Host string
		Port int
		// ReadTimeout in seconds, 0 blocks forever.
		ReadTimeout    int
		MaxMessageSize int
	}

	Connect struct {
		Network     string
		Host        string
		Port        int
		Path        string
		ReadTimeout int
		UI          string
	}

	Server struct {
		Listen  *Listen
		Key     *Key
		Logging *Logging
		Redis   *Redis
		Mongo   *Mongo
		Admin   *Admin
	}

	Client struct {
		Connect *Connect
		Key     *Key
		Logging *Logging
	}
)

func (k *Key) applyDefaults() {
	if k.Algorithm == "" {
		k.Algorithm = defaultAlgorithm
	}
	if k.Key == "" {
		k.Key = defaultKey
	}
	if k.RSAKeySize == 0 {
		k.RSAKeySize = defaultRSAKeySize
	}
}

func (k *Key) validate() error {
	alg, err := algorithm.Parse(k.Algorithm)
	if err != nil {
		return fmt.Errorf("config: Key: %w", err)
	}

	if alg == algorithm.RSA {
		if k.PrivateKeyFile == "" && k.RSAKeySize < 1024 {
			return fmt.Errorf("config: Key: RSAKeySize %d is too small", k.RSAKeySize)
		}
		return nil
	}

	raw, err := bytesutil.HexToBytes(k.Key)
	if err != nil {
		return fmt.Errorf("config: Key: invalid Key: %w", err)
	}
	if _, err := cipher.New(alg, raw); err != nil {
		return fmt.Errorf("config: Key: unusable %v key: %w", alg, err)
	}
	return nil
}

// Material returns the parsed algorithm and pre-shared key.
func (k *Key) Material() (algorithm.Algorithm, []byte, error) {
	alg, err := algorithm.Parse(k.Algorithm)
	if err != nil {
		return 0, nil, err
	}
	if alg == algorithm.RSA {
		return alg, nil, nil
	}
	raw, err := bytesutil.HexToBytes(k.Key)
	if err != nil {
		return 0, nil, err
	}
	return alg, raw, nil
}

func (l *Logging) applyDefaults() {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
}

// Log converts the section for log.Init.
func (l *Logging) Log() log.Config {
	return log.Config{
		Disable:  l.Disable,
		File:     l.File,
		Level:    l.Level,
		Encoding: l.Encoding,
	}
}

func (r *Redis) applyDefaults() {
	if r.MaxEntries == 0 {
		r.MaxEntries = defaultMaxEntries
	}
	if r.TTL == 0 {
		r.TTL = defaultTTL
	}
}

func (r *Redis) Enabled() bool {
	return r.Addr != ""
}

func (r *Redis) Expiration() time.Duration {
	return time.Duration(r.TTL) * time.Second
}

func (m *Mongo) applyDefaults() {
	if m.Database == "" {
		m.Database = defaultDatabase
	}
}

func (m *Mongo) Enabled() bool {
	return m.URI != ""
}

func (a *Admin) applyDefaults() {
	if a.Address == "" {
		a.Address = defaultAdmin
	}
}

func (l *Listen) applyDefaults() {
	if l.Host == "" {
		l.Host = defaultHost
	}
	if l.Port == 0 {
		l.Port = defaultPort
	}
}

func (l *Listen) validate() error {
	if err := validatePort(l.Port); err != nil {
		return fmt.Errorf("config: Listen: %w", err)
	}
	if l.ReadTimeout < 0 {
		return errors.New("config: Listen: ReadTimeout is negative")
	}
	if l.MaxMessageSize < 0 {
		return errors.New("config: Listen: MaxMessageSize is negative")
	}
	return nil
}

// Address is host:port.
func (l *Listen) Address() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

func (l *Listen) Timeout() time.Duration {
	return time.Duration(l.ReadTimeout) * time.Second
}

func (c *Connect) applyDefaults() {
	if c.Network == "" {
		c.Network = NetworkTCP
	}
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Path == "" {
		c.Path = defaultWSPath
	}
	if c.UI == "" {
		c.UI = UIAuto
	}
}

func (c *Connect) validate() error {
	switch c.Network {
	case NetworkTCP, NetworkWS:
	default:
		return fmt.Errorf("config: Connect: invalid Network %q", c.Network)
	}
	switch c.UI {
	case UIAuto, UIPlain, UITUI:
	default:
		return fmt.Errorf("config: Connect: invalid UI %q", c.UI)
	}
	if err := validatePort(c.Port); err != nil {
		return fmt.Errorf("config: Connect: %w", err)
	}
	if c.ReadTimeout < 0 {
		return errors.New("config: Connect: ReadTimeout is negative")
	}
	return nil
}

// Address is what transport.Dial expects for the configured network: host:port
// for TCP, a ws:// URL for WebSocket.
func (c *Connect) Address() string {
	hostport := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	if c.Network == NetworkWS {
		return "ws://" + hostport + c.Path
	}
	return hostport
}

func (c *Connect) Timeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func validatePort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("invalid Port %d", p)
	}
	return nil
}

// FixupAndValidate applies defaults to missing sections and values, then
// validates the configuration.
func (cfg *Server) FixupAndValidate() error {
	if cfg.Listen == nil {
		cfg.Listen = &Listen{}
	}
	if cfg.Key == nil {
		cfg.Key = &Key{}
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}
	if cfg.Redis == nil {
		cfg.Redis = &Redis{}
	}
	if cfg.Mongo == nil {
		cfg.Mongo = &Mongo{}
	}
	if cfg.Admin == nil {
		cfg.Admin = &Admin{}
	}

	cfg.Listen.applyDefaults()
	cfg.Key.applyDefaults()
	cfg.Logging.applyDefaults()
	cfg.Redis.applyDefaults()
	cfg.Mongo.applyDefaults()
	cfg.Admin.applyDefaults()

	if err := cfg.Listen.validate(); err != nil {
		return err
	}
	return cfg.Key.validate()
}

// FixupAndValidate applies defaults to missing sections and values, then
// validates the configuration.
func (cfg *Client) FixupAndValidate() error {
	if cfg.Connect == nil {
		cfg.Connect = &Connect{}
	}
	if cfg.Key == nil {
		cfg.Key = &Key{}
	}
	if cfg.Logging == nil {
		cfg.Logging = &Logging{}
	}

	cfg.Connect.applyDefaults()
	cfg.Key.applyDefaults()
	cfg.Logging.applyDefaults()

	if err := cfg.Connect.validate(); err != nil {
		return err
	}
	return cfg.Key.validate()
}

func decode(b []byte, cfg any) error {
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	return nil
}

// LoadServer parses and validates the provided buffer b as a server config
// file body.
func LoadServer(b []byte) (*Server, error) {
	cfg := new(Server)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServerFile is LoadServer on the content of f. An empty f yields the
// defaults.
func LoadServerFile(f string) (*Server, error) {
	if f == "" {
		return LoadServer(nil)
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadServer(b)
}

func LoadClient(b []byte) (*Client, error) {
	cfg := new(Client)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientFile is LoadClient on the content of f. An empty f yields the
// defaults.
func LoadClientFile(f string) (*Client, error) {
	if f == "" {
		return LoadClient(nil)
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadClient(b)
}
