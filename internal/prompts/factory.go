package prompts

import "agentgw/internal/config"

// Build constructs the Store per RemotePromptsConfig: remote-backed when
// enabled (falling back to local on startup failure), local-only otherwise.
func Build(cfg config.RemotePromptsConfig) (*Store, error) {
	var remote *remoteClient
	if cfg.Enabled {
		remote = NewRemoteClient(cfg.ProjectID, cfg.SAKeyPath)
	}
	return Open(cfg.LocalPath, remote)
}
