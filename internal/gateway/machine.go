package gateway

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/agentden/agentden/internal/api"
)

const maxWorkspaces = 50

// machineInfo describes the host so clients can offer spawn locations.
// Workspaces are git working copies directly under the configured roots.
func machineInfo(roots []string) api.MachineInfo {
	info := api.MachineInfo{Platform: runtime.GOOS}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if u, err := user.Current(); err == nil {
		info.Username = u.Username
	}
	info.Workspaces = discoverWorkspaces(roots)
	return info
}

func discoverWorkspaces(roots []string) []string {
	seen := map[string]bool{}
	var workspaces []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			if seen[dir] {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
				continue
			}
			seen[dir] = true
			workspaces = append(workspaces, dir)
			if len(workspaces) >= maxWorkspaces {
				sort.Strings(workspaces)
				return workspaces
			}
		}
	}
	sort.Strings(workspaces)
	return workspaces
}
