package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"
	xhttp "PulseScan/pkg/http"
)

const runPath = "/analysis/run"

type runRequest struct {
	Symbol    string `json:"symbol"`
	TriggerID string `json:"trigger_id"`
}

// HTTPAnalysisInvoker hands triggers to the analysis service over HTTP. One attempt per trigger.
type HTTPAnalysisInvoker struct {
	base *HTTPServiceBase
}

func NewHTTPAnalysisInvoker(baseURL string, timeout time.Duration) *HTTPAnalysisInvoker {
	return &HTTPAnalysisInvoker{base: NewHTTPServiceBase(baseURL, timeout)}
}

func (i *HTTPAnalysisInvoker) Invoke(ctx context.Context, symbol, triggerID string) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	err := i.base.PostJSON(ctx, runPath, runRequest{Symbol: symbol, TriggerID: triggerID}, &res)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode >= http.StatusBadRequest && se.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %v", service.ErrAnalysisRejected, err)
		}
		return nil, err
	}
	return &res, nil
}

var _ service.AnalysisInvoker = (*HTTPAnalysisInvoker)(nil)
