// Package search keeps an Elasticsearch index of applications for the admin
// search endpoint. Postgres stays the source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
)

var ErrSearchFailed = errors.New("search query failed")

const (
	defaultSize = 20
	maxSize     = 100
)

// Document is the indexed projection of an application.
type Document struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meetingId"`
	UserID         string    `json:"userId"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	PassportNumber string    `json:"passportNumber"`
	Country        string    `json:"country,omitempty"`
	CompanyName    string    `json:"companyName,omitempty"`
	Status         string    `json:"status"`
	IsImported     bool      `json:"isImported"`
	CreatedAt      time.Time `json:"createdAt"`
}

func DocumentFrom(app *models.Application) Document {
	return Document{
		ID:             app.ID,
		MeetingID:      app.MeetingID,
		UserID:         app.UserID,
		FullName:       app.FullName(),
		Email:          app.Email,
		PassportNumber: app.PassportNumber,
		Country:        app.Country,
		CompanyName:    app.CompanyName,
		Status:         string(app.Status),
		IsImported:     app.IsImported,
		CreatedAt:      app.CreatedAt,
	}
}

type Query struct {
	Text      string
	MeetingID string
	Status    string
	From      int
	Size      int
}

type Hit struct {
	Score    float64  `json:"score"`
	Document Document `json:"document"`
}

type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

func (i *Index) Index(ctx context.Context, app *models.Application) error {
	body, err := json.Marshal(DocumentFrom(app))
	if err != nil {
		return err
	}
	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(app.ID),
	)
	if err != nil {
		return fmt.Errorf("index application %s: %w", app.ID, err)
	}
	return checkResponse(res, "index")
}

// Delete treats a missing document as already deleted.
func (i *Index) Delete(ctx context.Context, id string) error {
	res, err := i.client.Delete(i.index, id, i.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete application %s: %w", id, err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete")
}

func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	size := q.Size
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	body, err := json.Marshal(buildQuery(q, from, size))
	if err != nil {
		return nil, err
	}
	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, errorBody(res))
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	out := &Result{Total: raw.Hits.Total.Value, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Score: h.Score, Document: h.Source})
	}
	i.logger.Debug("search executed", map[string]interface{}{
		"query": q.Text,
		"total": out.Total,
	})
	return out, nil
}

func buildQuery(q Query, from, size int) map[string]interface{} {
	boolQuery := map[string]interface{}{}
	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q.Text,
					"fields": []string{"fullName^3", "passportNumber^2", "email", "companyName", "country"},
					"type":   "best_fields",
				},
			},
		}
	}
	var filters []interface{}
	if q.MeetingID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"meetingId": q.MeetingID}})
	}
	if q.Status != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"status": q.Status}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(boolQuery) > 0 {
		query = map[string]interface{}{"bool": boolQuery}
	}
	return map[string]interface{}{
		"query": query,
		"from":  from,
		"size":  size,
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch %s: %s", op, errorBody(res))
	}
	return nil
}

func errorBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Sprintf("%s %s", res.Status(), bytes.TrimSpace(b))
}
