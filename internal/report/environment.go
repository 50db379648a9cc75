package report

import (
	"log/slog"
	"os"
	"os/user"
	"runtime"
	"strconv"

	"gopkg.in/ini.v1"
)

const (
	osReleasePath   = "/etc/os-release"
	machineInfoPath = "/etc/machine-info"
)

// Collect reads the process identity and host description. Values that
// cannot be resolved are left blank.
func Collect() Environment {
	hostname, err := os.Hostname()
	if err != nil {
		slog.Debug("failed to read hostname", "error", err)
	}

	env := Environment{
		UID:  os.Getuid(),
		GID:  os.Getgid(),
		EUID: os.Geteuid(),
		EGID: os.Getegid(),

		Hostname: hostname,
		Platform: platformName(runtime.GOOS),
	}

	env.Username = lookupUser(env.UID)
	env.Groupname = lookupGroup(env.GID)
	env.EffectiveUsername = lookupUser(env.EUID)
	env.EffectiveGroup = lookupGroup(env.EGID)

	env.DeviceName = firstKey(machineInfoPath, "PRETTY_HOSTNAME")
	if env.DeviceName == "" {
		env.DeviceName = hostname
	}
	env.Distro = firstKey(osReleasePath, "PRETTY_NAME", "NAME")
	if env.Distro == "" {
		env.Distro = "Unknown"
	}

	return env
}

func lookupUser(id int) string {
	u, err := user.LookupId(strconv.Itoa(id))
	if err != nil {
		slog.Debug("failed to resolve user name", "uid", id, "error", err)
		return ""
	}
	return u.Username
}

func lookupGroup(id int) string {
	g, err := user.LookupGroupId(strconv.Itoa(id))
	if err != nil {
		slog.Debug("failed to resolve group name", "gid", id, "error", err)
		return ""
	}
	return g.Name
}

// firstKey returns the first non-empty value among keys in a shell-style
// KEY=value file such as os-release(5).
func firstKey(path string, keys ...string) string {
	f, err := ini.LoadSources(ini.LoadOptions{
		Loose:                     true,
		IgnoreInlineComment:       true,
		SkipUnrecognizableLines:   true,
		UnescapeValueDoubleQuotes: true,
	}, path)
	if err != nil {
		slog.Debug("failed to read host description", "path", path, "error", err)
		return ""
	}
	return lookupKeys(f, keys...)
}

func lookupKeys(f *ini.File, keys ...string) string {
	section := f.Section(ini.DefaultSection)
	for _, k := range keys {
		if v := section.Key(k).String(); v != "" {
			return v
		}
	}
	return ""
}

func platformName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Mac OS"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	case "dragonfly":
		return "DragonFly BSD"
	case "illumos":
		return "Illumos"
	case "solaris":
		return "Solaris"
	case "windows":
		return "Windows"
	default:
		return goos
	}
}
