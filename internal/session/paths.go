package session

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// BaseDir returns ~/.boss, or $BOSS_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("BOSS_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".boss")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// maxSocketPath stays under the 104 byte sun_path limit of BSDs.
const maxSocketPath = 100

// SocketPath returns the UDS socket path for a session. Paths too long
// for a unix socket move to the temp dir under a name derived from them.
func SocketPath(name string) string {
	p := filepath.Join(Dir(name), "daemon.sock")
	if len(p) <= maxSocketPath {
		return p
	}
	sum := sha256.Sum256([]byte(p))
	return filepath.Join(os.TempDir(), "boss-"+hex.EncodeToString(sum[:8])+".sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// AppDBPath returns the session's boss.db path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "boss.db")
}

// StoriesDir returns the directory watched for new story media.
func StoriesDir(name string) string {
	return filepath.Join(Dir(name), "stories")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the log file of one binary, e.g. logs/bosstui.log.
func LogPath(name, process string) string {
	return filepath.Join(LogDir(name), process+".log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
		StoriesDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
