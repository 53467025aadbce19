// Package device builds the static device description sent with every
// instance update.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/text/language"
)

type source struct {
	hostInfo func(ctx context.Context) (*host.InfoStat, error)
	getenv   func(string) string
	now      func() time.Time
	location *time.Location
}

// Detect describes the current host. Probes that fail leave their fields
// at a fallback value; Detect never fails.
func Detect(ctx context.Context, agentName string) domain.DeviceInfo {
	return detect(ctx, agentName, source{
		hostInfo: host.InfoWithContext,
		getenv:   os.Getenv,
		now:      time.Now,
		location: time.Local,
	})
}

func detect(ctx context.Context, agentName string, src source) domain.DeviceInfo {
	info := domain.DeviceInfo{
		PlatformType: runtime.GOOS,
		PlatformName: runtime.GOOS,
		AgentName:    agentName,
	}

	if h, err := src.hostInfo(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to read host info, using GOOS", "error", err)
	} else {
		info.PlatformName = PlatformName(h.Platform, h.PlatformVersion, runtime.GOOS)
	}

	info.Lang, info.Country = Locale(localeEnv(src.getenv))

	now := src.now().In(src.location)
	abbrev, offset := now.Zone()
	info.TimezoneOffset = offset
	info.TimezoneName = zoneName(src.getenv("TZ"), src.location, abbrev)

	return info
}

// PlatformName formats "<platform>_<major>", e.g. "ubuntu_22". The major
// version is dropped when unknown.
func PlatformName(platform, version, fallback string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = fallback
	}
	major, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	if major == "" {
		return platform
	}
	return fmt.Sprintf("%s_%s", platform, major)
}

// localeEnv follows the POSIX precedence for message locale.
func localeEnv(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Locale splits a POSIX or BCP 47 locale ("de_AT.UTF-8", "pt-BR") into a
// language code and a region code. Either is empty when unknown; a region is
// only reported when the locale names one explicitly.
func Locale(raw string) (lang, country string) {
	raw, _, _ = strings.Cut(raw, ".")
	raw, _, _ = strings.Cut(raw, "@")
	if raw == "" || raw == "C" || raw == "POSIX" {
		return "", ""
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "", ""
	}

	base, _ := tag.Base()
	lang = base.String()
	if region, conf := tag.Region(); conf == language.Exact {
		country = region.String()
	}
	return lang, country
}

func zoneName(tz string, loc *time.Location, abbrev string) string {
	tz = strings.TrimPrefix(tz, ":")
	if tz != "" {
		return tz
	}
	if name := loc.String(); name != "" && name != "Local" {
		return name
	}
	return abbrev
}
