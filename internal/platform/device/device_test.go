package device

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformName(t *testing.T) {
	tests := []struct {
		platform, version, want string
	}{
		{"ubuntu", "22.04", "ubuntu_22"},
		{"Darwin", "14.5.0", "darwin_14"},
		{"debian", "12", "debian_12"},
		{"arch", "", "arch"},
		{"", "10.0.19045", "linux_10"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformName(tt.platform, tt.version, "linux"))
		})
	}
}

func TestLocale(t *testing.T) {
	tests := []struct {
		raw, lang, country string
	}{
		{"de_AT.UTF-8", "de", "AT"},
		{"pt-BR", "pt", "BR"},
		{"en_US.UTF-8@euro", "en", "US"},
		{"fr", "fr", ""},
		{"C", "", ""},
		{"POSIX", "", ""},
		{"", "", ""},
		{"not a locale!", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			lang, country := Locale(tt.raw)
			assert.Equal(t, tt.lang, lang)
			assert.Equal(t, tt.country, country)
		})
	}
}

func fixedEnv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestDetect_WithHostInfo(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	src := source{
		hostInfo: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{Platform: "ubuntu", PlatformVersion: "24.04"}, nil
		},
		getenv:   fixedEnv(map[string]string{"LANG": "de_DE.UTF-8", "LC_ALL": "es_MX.UTF-8", "TZ": "Europe/Berlin"}),
		now:      func() time.Time { return time.Unix(1_700_000_000, 0) },
		location: loc,
	}

	info := detect(context.Background(), "px_go_sdk_test", src)

	assert.Equal(t, runtime.GOOS, info.PlatformType)
	assert.Equal(t, "ubuntu_24", info.PlatformName)
	assert.Equal(t, "px_go_sdk_test", info.AgentName)
	assert.Equal(t, "es", info.Lang)
	assert.Equal(t, "MX", info.Country)
	assert.Equal(t, 3600, info.TimezoneOffset)
	assert.Equal(t, "Europe/Berlin", info.TimezoneName)
}

func TestDetect_HostInfoFailure(t *testing.T) {
	src := source{
		hostInfo: func(context.Context) (*host.InfoStat, error) { return nil, errors.New("no /etc/os-release") },
		getenv:   fixedEnv(nil),
		now:      time.Now,
		location: time.FixedZone("XYZ", -7200),
	}

	info := detect(context.Background(), "agent", src)

	assert.Equal(t, runtime.GOOS, info.PlatformName)
	assert.Empty(t, info.Lang)
	assert.Empty(t, info.Country)
	assert.Equal(t, -7200, info.TimezoneOffset)
	assert.Equal(t, "XYZ", info.TimezoneName)
}

func TestDetect_Live(t *testing.T) {
	info := Detect(context.Background(), "agent")
	require.NotEmpty(t, info.PlatformType)
	assert.NotEmpty(t, info.PlatformName)
}
