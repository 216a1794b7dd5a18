// Package logkeeper moves request log entries from Kafka into Elasticsearch.
package logkeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/logger"
)

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Keeper reads log messages and indexes them with a pool of workers.
type Keeper struct {
	r          messageReader
	es         *elasticsearch.Client
	index      string
	numWorkers int
}

func New(r messageReader, es *elasticsearch.Client, index string, numWorkers int) *Keeper {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Keeper{r: r, es: es, index: index, numWorkers: numWorkers}
}

// Run blocks until ctx is cancelled. Messages already read are indexed before it
// returns.
func (k *Keeper) Run(ctx context.Context) {
	jobs := make(chan kafka.Message, k.numWorkers*5)
	var wg sync.WaitGroup
	wg.Add(k.numWorkers)
	for workerID := 0; workerID < k.numWorkers; workerID++ {
		go func(id int) {
			defer wg.Done()
			k.worker(jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := k.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		jobs <- msg
	}

	close(jobs)
	wg.Wait()
}

func (k *Keeper) worker(jobs <-chan kafka.Message, workerID int) {
	for msg := range jobs {
		entry, err := k.Index(context.Background(), msg.Value)
		if err != nil {
			log.Errorf("[logkeeper][workerID:%d] %v", workerID, err)
			continue
		}
		log.Infof("[logkeeper][workerID:%d][%s] log entry indexed", workerID, shorten(entry.RequestID))
	}
	log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
}

// Index stores one raw log entry under its document id.
func (k *Keeper) Index(ctx context.Context, raw []byte) (logger.LogEntry, error) {
	var entry logger.LogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, fmt.Errorf("failed to unmarshal log entry: %w", err)
	}

	res, err := k.es.Index(
		k.index,
		bytes.NewReader(raw),
		k.es.Index.WithDocumentID(entry.DocumentID()),
		k.es.Index.WithContext(ctx),
	)
	if err != nil {
		return entry, fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return entry, fmt.Errorf("failed to index document: %s", res.Status())
	}

	return entry, nil
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
