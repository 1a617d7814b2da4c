package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/urfave/cli/v3"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/service/retrieval"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

// Retrieval holds CLI flags for the memory retrieval index
type Retrieval struct {
	persistPath string
	collection  string
}

// Flags returns CLI flags for retrieval configuration
func (r *Retrieval) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "retrieval-persist-path",
			Usage:       "Directory for the on-disk retrieval index (empty means in-memory)",
			Sources:     cli.EnvVars("INKWELL_RETRIEVAL_PERSIST_PATH"),
			Destination: &r.persistPath,
		},
		&cli.StringFlag{
			Name:        "retrieval-collection",
			Usage:       "Retrieval index collection name",
			Sources:     cli.EnvVars("INKWELL_RETRIEVAL_COLLECTION"),
			Destination: &r.collection,
		},
	}
}

// Configure builds the retrieval index. Returns nil if no LLM client is
// available for embeddings; retrieval is then disabled.
func (r *Retrieval) Configure(client gollem.LLMClient) (interfaces.Index, error) {
	if client == nil {
		logging.Default().Info("LLM client not configured, retrieval index disabled")
		return nil, nil
	}

	var opts []retrieval.Option
	if r.persistPath != "" {
		opts = append(opts, retrieval.WithPersistPath(r.persistPath))
	}
	if r.collection != "" {
		opts = append(opts, retrieval.WithCollectionName(r.collection))
	}

	index, err := retrieval.New(client, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize retrieval index")
	}
	return index, nil
}
