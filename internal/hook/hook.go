package hook

import (
	"net/http"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// Verdict is the tri-state answer of the pre-fetch gate callback.
type Verdict int

const (
	// VerdictDefault defers to the engine's computed verdict.
	VerdictDefault Verdict = iota

	// VerdictAccept overrides the engine to fetch the locator.
	VerdictAccept

	// VerdictReject overrides the engine to skip the locator.
	VerdictReject
)

// String returns a human-readable form of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "default"
	}
}

// Action is a finish instruction returned by post-fetch and error
// callbacks. It may alter engine behavior for the item or the whole crawl.
type Action int

const (
	// ActionNormal lets the engine proceed with its default handling.
	ActionNormal Action = iota

	// ActionRetry forces the item back onto the retry path regardless
	// of the engine's own classification.
	ActionRetry

	// ActionFinish marks the item done regardless of the outcome.
	ActionFinish

	// ActionStop halts the crawl: no new dequeues, in-flight items
	// drain, frontier state is flushed before exit.
	ActionStop
)

// String returns a human-readable form of the action.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFinish:
		return "finish"
	case ActionStop:
		return "stop"
	default:
		return "normal"
	}
}

// Reason is one filter's contribution to the engine's default verdict.
type Reason struct {
	// Filter names the filter that produced this result.
	Filter string `json:"filter"`

	// Passed is false when this filter wanted the locator rejected.
	Passed bool `json:"passed"`

	// Detail optionally explains the result.
	Detail string `json:"detail,omitempty"`
}

// ResponseView is the serializable view of a completed exchange.
type ResponseView struct {
	StatusCode     int                 `json:"status_code"`
	Status         string              `json:"status"`
	ContentType    string              `json:"content_type,omitempty"`
	ContentLength  int64               `json:"content_length,omitempty"`
	RedirectTarget string              `json:"redirect_target,omitempty"`
	Header         map[string][]string `json:"header,omitempty"`
}

// NewResponseView builds the extension-boundary view of a response.
func NewResponseView(resp *fetch.Response) ResponseView {
	view := ResponseView{
		StatusCode:     resp.StatusCode,
		Status:         resp.Status,
		ContentType:    resp.ContentType,
		ContentLength:  resp.ContentLength,
		RedirectTarget: resp.RedirectTarget,
	}
	if len(resp.Header) > 0 {
		view.Header = http.Header.Clone(resp.Header)
	}
	return view
}

// ErrorView is the serializable view of a failed fetch attempt.
type ErrorView struct {
	// Kind is the failure mode name (timeout, connection_refused, ...).
	Kind string `json:"kind"`

	// Message is the underlying error text.
	Message string `json:"message"`
}

// NewErrorView builds the extension-boundary view of a failed outcome.
func NewErrorView(out *fetch.Outcome) ErrorView {
	view := ErrorView{Kind: string(out.Kind)}
	if out.Err != nil {
		view.Message = out.Err.Error()
	}
	return view
}

// DocumentView hands a fetched document to the locator supply callback.
// The body is referenced by its archived file path, never by an open
// stream, so the callback cannot hold engine resources.
type DocumentView struct {
	// Path is the archived body's location on disk. Empty when the
	// exchange produced no stored body.
	Path string `json:"path,omitempty"`

	// ContentType is the declared media type.
	ContentType string `json:"content_type,omitempty"`

	// StatusCode is the protocol status of the exchange.
	StatusCode int `json:"status_code"`
}

// Callbacks is the set of operator-supplied extension points. Every field
// is optional; a nil callback means the engine default applies at that
// point. Callback order within one item's lifetime: ResolveDNS, AcceptURL,
// then HandleResponse or HandleError, then GetURLs. FinishingStatistics
// and ExitStatus run once, at crawl end.
type Callbacks struct {
	// ResolveDNS may override name resolution for a host. Returning ""
	// keeps the engine's resolver answer.
	ResolveDNS func(host string) string

	// AcceptURL is the pre-fetch gate. It receives the engine's default
	// verdict and the per-filter reasons behind it, and may override the
	// decision unconditionally.
	AcceptURL func(item model.Snapshot, defaultAccept bool, reasons []Reason) Verdict

	// HandleResponse inspects a completed exchange and returns a finish
	// instruction.
	HandleResponse func(item model.Snapshot, resp ResponseView) Action

	// HandleError inspects a failed attempt and returns a finish
	// instruction.
	HandleError func(item model.Snapshot, errView ErrorView) Action

	// GetURLs supplies additional locators discovered by operator logic.
	// Results merge with the engine's own link discovery before enqueue.
	GetURLs func(item model.Snapshot, doc DocumentView) []string

	// FinishingStatistics observes the final crawl totals.
	FinishingStatistics func(stats model.StatsSnapshot)

	// ExitStatus may replace the computed process exit code.
	ExitStatus func(defaultCode int) int
}
