package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	ListenAddr       string
	DBPath           string
	PublicURL        string
	WorkspaceRoots   []string
	SettleDelay      time.Duration
	InitialTaskDelay time.Duration
	CodeTTL          time.Duration
	CommandTimeout   time.Duration
	ReadBufferSize   int
	InboxSize        int
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:       "127.0.0.1:7411",
		DBPath:           defaultDBPath(),
		PublicURL:        os.Getenv("AGENTDEND_PUBLIC_URL"),
		WorkspaceRoots:   defaultWorkspaceRoots(),
		SettleDelay:      1500 * time.Millisecond,
		InitialTaskDelay: 6 * time.Second,
		CodeTTL:          5 * time.Minute,
		CommandTimeout:   5 * time.Second,
		ReadBufferSize:   4096,
		InboxSize:        256,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentden.db"
	}
	return filepath.Join(home, ".local", "state", "agentden", "quests.db")
}

func defaultWorkspaceRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{home, filepath.Join(home, "projects"), filepath.Join(home, "src")}
}
