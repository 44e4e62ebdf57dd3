package app

import (
	"github.com/yungbote/treechat-backend/internal/clients/llm"
	"github.com/yungbote/treechat-backend/internal/clients/objstore"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type Clients struct {
	Store    objstore.ObjectStore
	Provider llm.Client
}

// wireClients builds the external collaborators. Both degrade to in-process
// fallbacks when unconfigured so the server always starts.
func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var store objstore.ObjectStore
	if cfg.Storage.Endpoint != "" {
		s, err := objstore.NewMinioStore(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.Bucket,
			cfg.Storage.UseSSL,
			log,
		)
		if err != nil {
			return Clients{}, err
		}
		store = s
	} else {
		log.Warn("STORAGE_ENDPOINT not set, using in-memory object store")
		store = objstore.NewMemoryStore()
	}

	provider, err := llm.NewClient(log)
	if err != nil {
		log.Warn("Completion provider not configured, using mock", "error", err)
		provider = llm.NewMockClient()
	}

	return Clients{Store: store, Provider: provider}, nil
}
