package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/liveclass/internal/classroom"
)

func clientFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyRelay, "", "")
	fs.String(KeyCodec, "", "")
	fs.String(KeyName, "", "")
	fs.String(KeyTURN, "", "")
	fs.Bool(KeyForceRelay, false, "")
	return fs
}

func loader(t *testing.T, fs *pflag.FlagSet) *Loader {
	t.Helper()
	l := NewLoader().WithEnvFile("")
	if fs != nil {
		require.NoError(t, l.BindFlags(fs))
	}
	return l
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loader(t, nil).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, DefaultSTUN, cfg.STUNServer)
	assert.Equal(t, classroom.RoleStudent, cfg.Role)
	assert.True(t, cfg.DNSFallback)
	assert.False(t, cfg.ForceRelay)
}

func TestLoadPriority(t *testing.T) {
	t.Setenv("LIVECLASS_NAME", "from-env")
	t.Setenv("LIVECLASS_CODEC", "msgpack")
	t.Setenv("LIVECLASS_TURN_USER", "env-user")

	fs := clientFlags(t)
	require.NoError(t, fs.Set(KeyName, "from-flag"))

	cfg, err := loader(t, fs).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Name, "a changed flag beats the environment")
	assert.Equal(t, "msgpack", cfg.Codec, "an untouched flag does not hide the environment")
	assert.Equal(t, "env-user", cfg.TURNUser)
	assert.Equal(t, DefaultRelayURL, cfg.RelayURL, "an untouched flag does not hide the default")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIVECLASS_ROLE=teacher\nLIVECLASS_DNS_FALLBACK=false\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LIVECLASS_ROLE")
		os.Unsetenv("LIVECLASS_DNS_FALLBACK")
	})

	cfg, err := NewLoader().WithEnvFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, classroom.RoleTeacher, cfg.Role)
	assert.False(t, cfg.DNSFallback)
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := NewLoader().WithEnvFile(filepath.Join(t.TempDir(), "absent")).Load()
	assert.NoError(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveclass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relay: ws://localhost:9000/ws\nname: Ada\n"), 0o600))
	t.Setenv("LIVECLASS_CONFIG", path)
	t.Setenv("LIVECLASS_NAME", "Grace")

	cfg, err := loader(t, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/ws", cfg.RelayURL)
	assert.Equal(t, "Grace", cfg.Name, "the environment beats the config file")
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Run("codec", func(t *testing.T) {
		fs := clientFlags(t)
		require.NoError(t, fs.Set(KeyCodec, "xml"))
		_, err := loader(t, fs).Load()
		assert.Error(t, err)
	})

	t.Run("force relay without turn", func(t *testing.T) {
		fs := clientFlags(t)
		require.NoError(t, fs.Set(KeyForceRelay, "true"))
		require.NoError(t, fs.Set(KeyTURN, ""))
		_, err := loader(t, fs).Load()
		assert.ErrorContains(t, err, "without TURN server")
	})
}

func TestTURNServers(t *testing.T) {
	cfg := &Config{TURNServer: "turn:turn.example.com"}
	assert.Equal(t, []string{
		"turn:turn.example.com:3478?transport=udp",
		"turn:turn.example.com:3478?transport=tcp",
		"turns:turn.example.com:5349?transport=tcp",
	}, cfg.GetTURNServers())

	cfg.TURNServer = "turn:turn.example.com:443?transport=tcp"
	assert.Equal(t, []string{"turn:turn.example.com:443?transport=tcp"}, cfg.GetTURNServers())

	cfg.TURNServer = ""
	assert.Nil(t, cfg.GetTURNServers())
}

func TestICE(t *testing.T) {
	cfg := &Config{
		STUNServer: DefaultSTUN,
		TURNServer: "turn.example.com",
		TURNUser:   "u",
		TURNPass:   "p",
		ForceRelay: true,
	}
	ice := cfg.ICE()
	assert.Equal(t, []string{DefaultSTUN}, ice.STUN)
	assert.Len(t, ice.TURN, 3)
	assert.Equal(t, "u", ice.TURNUser)
	assert.Equal(t, "p", ice.TURNPass)
	assert.True(t, ice.ForceRelay)
}

func TestLoadRelay(t *testing.T) {
	t.Setenv("LIVECLASS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LIVECLASS_MAX_ROOM_SIZE", "4")

	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	fs.String(KeyAddr, "", "")
	require.NoError(t, fs.Set(KeyAddr, ":9999"))

	cfg, err := loader(t, fs).LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 4, cfg.MaxRoomSize)
	assert.EqualValues(t, DefaultReadLimit, cfg.ReadLimit)
}

func TestLoadRelayRejectsNegativeRoomSize(t *testing.T) {
	t.Setenv("LIVECLASS_MAX_ROOM_SIZE", "-1")
	_, err := loader(t, nil).LoadRelay()
	assert.Error(t, err)
}
