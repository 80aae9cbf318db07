package session

import (
	"os"

	"github.com/matheus3301/bossmsg/internal/config"
)

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. $BOSS_SESSION
// 3. config.toml default_session
// 4. "main"
func Resolve(flagOverride string) string {
	if name := Normalize(flagOverride); name != "" {
		return name
	}
	if name := Normalize(os.Getenv("BOSS_SESSION")); name != "" {
		return name
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && Normalize(cfg.DefaultSession) != "" {
		return Normalize(cfg.DefaultSession)
	}
	return DefaultSessionName
}
