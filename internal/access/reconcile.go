// Package access wires the admin access providers to the server configuration.
package access

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/askidaforma/askida-forma/internal/access/password"
	"github.com/askidaforma/askida-forma/internal/config"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

// ProviderConfigs derives the provider declarations from cfg. An empty admin password
// yields none, which locks the admin console.
func ProviderConfigs(cfg *config.Config) []sdkaccess.ProviderConfig {
	if cfg == nil || strings.TrimSpace(cfg.Admin.Password) == "" {
		return nil
	}
	return []sdkaccess.ProviderConfig{{
		Name:   password.DefaultName,
		Type:   password.ProviderType,
		Secret: cfg.Admin.Password,
	}}
}

// ReconcileProviders builds the desired provider list by reusing existing providers when possible
// and creating or removing providers only when their configuration changed. It returns the final
// ordered provider slice along with the identifiers of providers that were added, updated, or
// removed compared to the previous configuration.
func ReconcileProviders(oldCfg, newCfg *config.Config, existing []sdkaccess.Provider) (result []sdkaccess.Provider, added, updated, removed []string, err error) {
	if newCfg == nil {
		return nil, nil, nil, nil, nil
	}

	existingMap := make(map[string]sdkaccess.Provider, len(existing))
	for _, provider := range existing {
		if provider == nil {
			continue
		}
		existingMap[provider.Identifier()] = provider
	}

	oldCfgMap := make(map[string]sdkaccess.ProviderConfig)
	for _, pc := range ProviderConfigs(oldCfg) {
		oldCfgMap[providerIdentifier(pc)] = pc
	}
	newEntries := ProviderConfigs(newCfg)

	result = make([]sdkaccess.Provider, 0, len(newEntries))
	finalIDs := make(map[string]struct{}, len(newEntries))

	for i := range newEntries {
		providerCfg := newEntries[i]
		key := providerIdentifier(providerCfg)
		if key == "" {
			continue
		}
		if oldProviderCfg, ok := oldCfgMap[key]; ok && oldProviderCfg == providerCfg {
			if existingProvider, okExisting := existingMap[key]; okExisting {
				result = append(result, existingProvider)
				finalIDs[key] = struct{}{}
				continue
			}
		}

		provider, buildErr := sdkaccess.BuildProvider(&providerCfg)
		if buildErr != nil {
			return nil, nil, nil, nil, buildErr
		}
		if _, existed := existingMap[key]; existed {
			updated = append(updated, key)
		} else {
			added = append(added, key)
		}
		result = append(result, provider)
		finalIDs[key] = struct{}{}
	}

	for id := range existingMap {
		if _, ok := finalIDs[id]; !ok {
			removed = append(removed, id)
		}
	}

	sort.Strings(added)
	sort.Strings(updated)
	sort.Strings(removed)

	return result, added, updated, removed, nil
}

// ApplyAccessProviders reconciles the configured access providers against the
// currently registered providers and updates the manager. It logs a concise
// summary of the detected changes and returns whether any provider changed.
func ApplyAccessProviders(manager *sdkaccess.Manager, oldCfg, newCfg *config.Config) (bool, error) {
	if manager == nil || newCfg == nil {
		return false, nil
	}

	password.Register()
	existing := manager.Providers()
	providers, added, updated, removed, err := ReconcileProviders(oldCfg, newCfg, existing)
	if err != nil {
		log.Errorf("failed to reconcile admin access providers: %v", err)
		return false, fmt.Errorf("reconciling access providers: %w", err)
	}

	manager.SetProviders(providers)

	if len(added)+len(updated)+len(removed) > 0 {
		log.Infof("admin access providers reconciled (added=%d updated=%d removed=%d)", len(added), len(updated), len(removed))
		log.Debugf("admin access providers changes details - added=%v updated=%v removed=%v", added, updated, removed)
		if len(providers) == 0 {
			log.Warn("admin password is empty, the admin console is locked")
		}
		return true, nil
	}

	log.Debug("admin access providers unchanged after config update")
	return false, nil
}

func providerIdentifier(pc sdkaccess.ProviderConfig) string {
	if name := strings.TrimSpace(pc.Name); name != "" {
		return name
	}
	return strings.TrimSpace(pc.Type)
}
