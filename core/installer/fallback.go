package installer

import (
	"fmt"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// ensureFallback stages a self-signed bundle when neither the crt directory nor
// the staged set holds a valid one. Callers hold mu.
func (i *Installer) ensureFallback() error {
	if i.cfg.NoFallbackCert {
		return nil
	}

	staged := i.staged.all()
	for _, data := range staged {
		if i.validate(data).Valid {
			return nil
		}
	}

	paths, err := i.store.list()
	if err != nil {
		return err
	}
	for _, path := range paths {
		// Staged content replaces what is on disk.
		if _, ok := staged[path]; ok {
			continue
		}
		data, err := i.store.read(path)
		if err != nil {
			continue
		}
		if i.validate(data).Valid {
			return nil
		}
	}

	data, err := i.fallback(i.cfg.FallbackCommonName)
	if err != nil {
		return fmt.Errorf("generate fallback certificate: %w", err)
	}

	path := i.store.path(fallbackName)
	exists, err := i.store.exists(path)
	if err != nil {
		return err
	}
	verb := "Added"
	if i.staged.put(path, data, exists) {
		verb = "Changed"
	}
	i.staged.notes += verb + " fallback certificate\n"

	i.logger.Info("no valid bundle found, staged fallback certificate", logger.FilePath(path))
	return nil
}
