// Package search mirrors job records into Elasticsearch so browse and
// search screens read fresh documents. Indexing follows the same contract
// as notifications: best-effort, after the state write, never on the
// request path's error budget.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"mistrihub/internal/common/logger"
	"mistrihub/internal/models"
)

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// IndexJob upserts the job document keyed by job id. Runs in its own
// goroutine so lifecycle transitions never wait on Elasticsearch.
func (i *Indexer) IndexJob(job *models.Job) {
	doc := map[string]interface{}{
		"id":           job.ID,
		"title":        job.Title,
		"description":  job.Description,
		"category":     job.Category,
		"location":     job.Location,
		"budgetMin":    job.Budget.Min,
		"budgetMax":    job.Budget.Max,
		"status":       string(job.Status),
		"applications": job.Applications,
		"createdAt":    job.CreatedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		body, err := json.Marshal(doc)
		if err != nil {
			i.logger.Warn("marshal job document failed", map[string]interface{}{
				"jobId": job.ID,
				"error": err.Error(),
			})
			return
		}

		res, err := i.client.Index(
			i.index,
			bytes.NewReader(body),
			i.client.Index.WithDocumentID(job.ID),
			i.client.Index.WithContext(ctx),
		)
		if err != nil {
			i.logger.Warn("index job failed", map[string]interface{}{
				"jobId": job.ID,
				"error": err.Error(),
			})
			return
		}
		defer res.Body.Close()

		if res.IsError() {
			i.logger.Warn("index job rejected", map[string]interface{}{
				"jobId":  job.ID,
				"status": res.Status(),
			})
		}
	}()
}
