package steps

import (
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"yqhp/session-engine/internal/session"
)

const defaultHTTPTimeout = 30 * time.Second

var (
	// 全局共享的 FastHTTP 客户端，多会话共享连接池
	globalHTTPClient     *fasthttp.Client
	globalHTTPClientOnce sync.Once
)

func sharedHTTPClient() *fasthttp.Client {
	globalHTTPClientOnce.Do(func() {
		globalHTTPClient = &fasthttp.Client{
			MaxConnsPerHost:     1000,
			MaxIdleConnDuration: 90 * time.Second,
		}
	})
	return globalHTTPClient
}

// httpStep issues an asynchronous HTTP request through the connection layer.
// The session parks on the step while the request is in flight: the instance
// stays alive through an extra reference held by the pending request, and a
// completion task submitted to the session's executor calls Proceed.
type httpStep struct {
	stepID   int
	metric   string
	method   string
	url      string
	toStatus string
	toBody   string
	timeout  time.Duration
	client   *fasthttp.Client
}

func newHTTPStep(params map[string]any, bc *BuildContext) (session.Step, error) {
	url, err := RequiredParam[string](params, "url")
	if err != nil {
		return nil, err
	}
	timeout, err := DurationParam(params, "timeout", defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}
	return &httpStep{
		stepID:   bc.NextStepID(),
		metric:   OptionalParam(params, "metric", "http"),
		method:   OptionalParam(params, "method", fasthttp.MethodGet),
		url:      url,
		toStatus: OptionalParam(params, "to_status", ""),
		toBody:   OptionalParam(params, "to_body", ""),
		timeout:  timeout,
		client:   sharedHTTPClient(),
	}, nil
}

func (st *httpStep) Reserve(s *session.Session) {
	if st.toStatus != "" {
		s.DeclareInt(st.toStatus)
	}
	if st.toBody != "" {
		s.DeclareObject(st.toBody)
	}
	s.DeclareResource(st, func() session.Resource { return &requestSlot{} }, false)
}

func (st *httpStep) Invoke(s *session.Session) (bool, error) {
	slot := s.GetResource(st).(*requestSlot)
	if slot.pending == nil {
		r := &pendingRequest{
			instance: s.CurrentSequence(),
			start:    time.Now(),
		}
		r.instance.IncRef()
		slot.pending = r
		s.SetCurrentRequest(r)
		s.Statistics(st.stepID, st.metric).IncrementRequests()
		st.fire(s, r)
		return false, nil
	}
	r := slot.pending
	if !r.done {
		return false, nil
	}
	slot.pending = nil
	s.SetCurrentRequest(nil)
	r.instance.DecRef(s)
	stats := s.Statistics(st.stepID, st.metric)
	if r.err != nil {
		stats.IncrementConnectionErrors()
		return false, fmt.Errorf("request %s %s: %w", st.method, st.url, r.err)
	}
	stats.RecordResponse(time.Since(r.start))
	if st.toStatus != "" {
		if err := s.SetInt(st.toStatus, r.status); err != nil {
			return false, err
		}
	}
	if st.toBody != "" {
		if err := s.SetObject(st.toBody, string(r.body)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// fire runs the request on a client goroutine and funnels completion back
// onto the session's executor, the only place session state may be touched.
func (st *httpStep) fire(s *session.Session, r *pendingRequest) {
	exec := s.Executor()
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		req.SetRequestURI(st.url)
		req.Header.SetMethod(st.method)
		err := st.client.DoTimeout(req, resp, st.timeout)
		status := resp.StatusCode()
		body := append([]byte(nil), resp.Body()...)
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		exec.Submit(func() {
			if r.cancelled {
				return
			}
			r.status = status
			r.body = body
			r.err = err
			r.done = true
			s.Proceed()
		})
	}()
}

// pendingRequest implements session.Request for one in-flight HTTP call.
type pendingRequest struct {
	instance  *session.SequenceInstance
	start     time.Time
	status    int
	body      []byte
	err       error
	done      bool
	cancelled bool
}

// requestSlot is the per-concurrency resource holding the pending request.
// On session reset an abandoned request drops its instance reference
// immediately; the late completion task sees cancelled and discards itself.
type requestSlot struct {
	pending *pendingRequest
}

func (rs *requestSlot) OnSessionReset(s *session.Session) {
	if rs.pending != nil && !rs.pending.done {
		rs.pending.cancelled = true
		rs.pending.instance.DecRef(s)
		rs.pending = nil
	} else if rs.pending != nil {
		rs.pending = nil
	}
}
