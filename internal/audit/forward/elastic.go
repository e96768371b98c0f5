package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"confd/internal/types"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticForwarder indexes audit entries in Elasticsearch for search
type ElasticForwarder struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticForwarder creates an Elasticsearch forwarder
func NewElasticForwarder(cfg *ElasticsearchConfig) (*ElasticForwarder, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client creation error: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = "confd-audit"
	}

	return &ElasticForwarder{client: client, index: index}, nil
}

// Forward indexes one entry, using the sequence number as document id so
// redelivery stays idempotent
func (f *ElasticForwarder) Forward(ctx context.Context, entry *types.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      f.index,
		DocumentID: strconv.FormatInt(entry.Sequence, 10),
		Body:       bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, f.client)
	if err != nil {
		return fmt.Errorf("elasticsearch index error: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index error: %s", res.Status())
	}

	return nil
}

// Name returns the forwarder name
func (f *ElasticForwarder) Name() string {
	return "elasticsearch"
}

// Close is a no-op; the underlying transport has no close
func (f *ElasticForwarder) Close() error {
	return nil
}
