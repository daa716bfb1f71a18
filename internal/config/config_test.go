package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"tpa_auth/internal/cryptographic/algorithm"

	"github.com/stretchr/testify/require"
)

func TestServerDefaults(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg, err := LoadServer(nil)
	require.NoError(err)
	require.Equal("localhost:12345", cfg.Listen.Address())
	require.Zero(cfg.Listen.Timeout())
	require.Equal("AES", cfg.Key.Algorithm)
	require.Equal(2048, cfg.Key.RSAKeySize)
	require.Equal("INFO", cfg.Logging.Level)
	require.False(cfg.Redis.Enabled())
	require.False(cfg.Mongo.Enabled())
	require.Equal("localhost:9090", cfg.Admin.Address)

	alg, key, err := cfg.Key.Material()
	require.NoError(err)
	require.Equal(algorithm.AES, alg)
	require.Len(key, 16)
}

func TestServerLoad(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	const body = `
[Listen]
  Host = "0.0.0.0"
  Port = 4000
  ReadTimeout = 30

[Key]
  Algorithm = "tdes"
  Key = "77:88:55:44:11:22:44:55:DD:66:E8:F6:F2:B4:A5:4E"

[Logging]
  Level = "DEBUG"
  Encoding = "json"

[Redis]
  Addr = "127.0.0.1:6379"
  TTL = 60

[Mongo]
  URI = "mongodb://localhost:27017"
`
	cfg, err := LoadServer([]byte(body))
	require.NoError(err)
	require.Equal("0.0.0.0:4000", cfg.Listen.Address())
	require.Equal(30*time.Second, cfg.Listen.Timeout())
	require.True(cfg.Redis.Enabled())
	require.Equal(time.Minute, cfg.Redis.Expiration())
	require.EqualValues(100, cfg.Redis.MaxEntries)
	require.True(cfg.Mongo.Enabled())
	require.Equal("tpa", cfg.Mongo.Database)
	require.Equal("json", cfg.Logging.Log().Encoding)

	alg, key, err := cfg.Key.Material()
	require.NoError(err)
	require.Equal(algorithm.TDES, alg)
	require.Len(key, 16)
}

func TestServerInvalid(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"unknown key":      "[Listen]\nBogus = 1\n",
		"bad port":         "[Listen]\nPort = 70000\n",
		"negative timeout": "[Listen]\nReadTimeout = -1\n",
		"bad algorithm":    "[Key]\nAlgorithm = \"Blowfish\"\n",
		"odd hex":          "[Key]\nKey = \"ABC\"\n",
		"wrong key size":   "[Key]\nAlgorithm = \"AES\"\nKey = \"0011\"\n",
		"small rsa":        "[Key]\nAlgorithm = \"RSA\"\nRSAKeySize = 512\n",
		"invalid toml":     "[Listen\n",
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadServer([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestClientLoad(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg, err := LoadClient(nil)
	require.NoError(err)
	require.Equal(NetworkTCP, cfg.Connect.Network)
	require.Equal("localhost:12345", cfg.Connect.Address())
	require.Equal(UIAuto, cfg.Connect.UI)

	cfg, err = LoadClient([]byte("[Connect]\nNetwork = \"ws\"\nPort = 9090\nUI = \"plain\"\n[Key]\nAlgorithm = \"DES\"\nKey = \"0011223344556677\"\n"))
	require.NoError(err)
	require.Equal("ws://localhost:9090/channel", cfg.Connect.Address())

	_, err = LoadClient([]byte("[Connect]\nNetwork = \"udp\"\n"))
	require.Error(err)
	_, err = LoadClient([]byte("[Connect]\nUI = \"gtk\"\n"))
	require.Error(err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(os.WriteFile(path, []byte("[Key]\nAlgorithm = \"RSA\"\n"), 0600))

	cfg, err := LoadServerFile(path)
	require.NoError(err)
	alg, key, err := cfg.Key.Material()
	require.NoError(err)
	require.Equal(algorithm.RSA, alg)
	require.Nil(key)

	_, err = LoadServerFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(err)

	ccfg, err := LoadClientFile("")
	require.NoError(err)
	require.Equal("AES", ccfg.Key.Algorithm)
}
