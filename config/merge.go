package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	result.Watcher = mergeWatcher(result.Watcher, override.Watcher)
	result.Storage = mergeStorage(result.Storage, override.Storage)

	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.RegistryDebounceMs != 0 {
		result.Daemon.RegistryDebounceMs = override.Daemon.RegistryDebounceMs
	}
	if override.Daemon.ActivityDebounceMs != 0 {
		result.Daemon.ActivityDebounceMs = override.Daemon.ActivityDebounceMs
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for k, v := range result.Extensions {
			merged[k] = v
		}
		for key, value := range override.Extensions {
			// Shallow-merge sections present on both sides
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					section := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						section[k] = v
					}
					for k, v := range overrideMap {
						section[k] = v
					}
					merged[key] = section
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeWatcher(base, override WatcherConfig) WatcherConfig {
	result := base

	if override.TickInterval != "" {
		result.TickInterval = override.TickInterval
	}
	if override.IdleTimeout != "" {
		result.IdleTimeout = override.IdleTimeout
	}
	if override.MaxSessionAge != "" {
		result.MaxSessionAge = override.MaxSessionAge
	}
	if override.LargeFileThreshold != 0 {
		result.LargeFileThreshold = override.LargeFileThreshold
	}
	if len(override.Exclude) > 0 {
		result.Exclude = append(append([]string{}, base.Exclude...), override.Exclude...)
	}
	if override.DigestCase != "" {
		result.DigestCase = override.DigestCase
	}

	return result
}

func mergeStorage(base, override StorageConfig) StorageConfig {
	result := base

	if override.HistoryRef != "" {
		result.HistoryRef = override.HistoryRef
	}
	if override.CommitMessage != "" {
		result.CommitMessage = override.CommitMessage
	}
	if override.SessionDir != "" {
		result.SessionDir = override.SessionDir
	}
	if override.LFSDir != "" {
		result.LFSDir = override.LFSDir
	}
	if override.Reflog != "" {
		result.Reflog = override.Reflog
	}

	return result
}
