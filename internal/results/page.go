package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/storage"
)

// Result is one stored artifact as exposed by the results endpoint.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Metadata any    `json:"metadata"`
	Content  string `json:"content"`
}

// Page is one slice of a job's results, newest first.
type Page struct {
	Results     []Result `json:"results"`
	CurrentPage int      `json:"current_page"`
	TotalPages  int      `json:"total_pages"`
}

var requiredKeys = []string{"url", "title", "metadata", "content"}

// List returns page (1-based) of the results stored for jobID. Objects that
// are not valid JSON or lack url, title, metadata or content are skipped.
func (s *Store) List(ctx context.Context, jobID string, page int) (Page, error) {
	if err := validateJobID(jobID); err != nil {
		return Page{}, err
	}
	if page < 1 {
		return Page{}, ErrInvalidPage
	}

	objects, err := s.backend.ListObjects(ctx, jobID)
	var partial *storage.PartialListError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		s.logger.Warn("skipped unreadable results", zap.String("job_id", jobID), zap.Error(err))
	case errors.Is(err, storage.ErrNotFound):
		return Page{}, ErrJobNotFound
	default:
		return Page{}, fmt.Errorf("list job %s: %w", jobID, err)
	}

	prefix := jobID + "/"
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == obj.Key || strings.Contains(name, "/") || !strings.HasSuffix(name, extension) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	all := make([]Result, 0, len(keys))
	for _, key := range keys {
		result, ok := s.load(ctx, key)
		if ok {
			all = append(all, result)
		}
	}

	totalPages := 1
	if len(all) > 0 {
		totalPages = (len(all) + PageSize - 1) / PageSize
	}
	if page > totalPages {
		return Page{}, ErrPageOutOfRange
	}
	start := (page - 1) * PageSize
	end := min(start+PageSize, len(all))
	return Page{
		Results:     all[start:end],
		CurrentPage: page,
		TotalPages:  totalPages,
	}, nil
}

func (s *Store) load(ctx context.Context, key string) (Result, bool) {
	data, err := s.backend.GetObject(ctx, key)
	if err != nil {
		s.logger.Warn("read stored result failed", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		s.logger.Warn("skip malformed result", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	for _, k := range requiredKeys {
		if _, ok := fields[k]; !ok {
			return Result{}, false
		}
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn("skip malformed result", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	return result, true
}
