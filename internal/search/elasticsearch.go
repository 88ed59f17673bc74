package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventIndexer mirrors events into Elasticsearch so the back office can search
// across the whole history, including settled events that never show up in the
// paginated lists.
type EventIndexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
}

// elasticIndexer implements EventIndexer on Elasticsearch
type elasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

// noopIndexer is used when no Elasticsearch URL is configured.
type noopIndexer struct{}

func (noopIndexer) IndexEvent(context.Context, *models.Event) error { return nil }

// NewNopIndexer returns an indexer that drops every document, for tests and
// degraded startup.
func NewNopIndexer() EventIndexer {
	return noopIndexer{}
}

// NewEventIndexer creates an Elasticsearch backed indexer, or a no-op indexer
// when no URL is configured.
func NewEventIndexer(cfg config.ElasticConfig) (EventIndexer, error) {
	if cfg.URL == "" {
		return noopIndexer{}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &elasticIndexer{client: client, index: cfg.Index}, nil
}

// IndexEvent indexes the current state of an event
func (c *elasticIndexer) IndexEvent(ctx context.Context, event *models.Event) error {
	doc := map[string]interface{}{
		"id":             event.ID.String(),
		"event_at":       event.EventAt,
		"deadline_at":    event.DeadlineAt,
		"status":         event.Status,
		"status_label":   event.Status.Label(),
		"products_count": event.ProductsCount,
		"updated_at":     event.UpdatedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event document")
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: event.ID.String(),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to index event")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.New(fmt.Sprintf("failed to index event: %s", res.Status()))
	}

	log.Debug().Str("event_id", event.ID.String()).Str("status", string(event.Status)).Msg("event indexed")
	return nil
}
