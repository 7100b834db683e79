package support

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"sync"

	"github.com/MeKo-Tech/linecheck/internal/capture"
	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/MeKo-Tech/linecheck/internal/server"
	"github.com/MeKo-Tech/linecheck/internal/verify"
	"github.com/gorilla/websocket"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	// Node under test
	Builder  *pipeline.Builder
	Pipeline *pipeline.Pipeline
	Orch     *cycle.Orchestrator
	Codec    verify.Codec
	Hub      *server.Hub

	// Cycle state
	Frame      *frame.Frame
	LastResult *cycle.Result
	LastError  error

	mu      sync.Mutex
	emitted []*cycle.Result

	// Server state
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	WSConn             *websocket.Conn
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Emitted returns the results delivered to the recording sink.
func (testCtx *TestContext) Emitted() []*cycle.Result {
	testCtx.mu.Lock()
	defer testCtx.mu.Unlock()
	return append([]*cycle.Result(nil), testCtx.emitted...)
}

func (testCtx *TestContext) record(_ context.Context, res *cycle.Result) error {
	testCtx.mu.Lock()
	defer testCtx.mu.Unlock()
	testCtx.emitted = append(testCtx.emitted, res)
	return nil
}

// orchestrator builds the pipeline and orchestrator on first use so that
// Given steps can still adjust the configuration.
func (testCtx *TestContext) orchestrator() (*cycle.Orchestrator, error) {
	if testCtx.Orch != nil {
		return testCtx.Orch, nil
	}
	if testCtx.Builder == nil {
		return nil, errors.New("no line node configured")
	}
	p, err := testCtx.Builder.Build(context.Background())
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	testCtx.Pipeline = p
	testCtx.Hub = server.NewHub()

	opts := []cycle.Option{
		cycle.WithSource(capture.NewSyntheticSource()),
		cycle.WithSinks(testCtx.Hub, cycle.SinkFunc{ID: "record", Fn: testCtx.record}),
	}
	if testCtx.Codec != nil {
		opts = append(opts, cycle.WithCodec(testCtx.Codec))
	}
	testCtx.Orch, err = p.Orchestrator(cycle.DefaultConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return testCtx.Orch, nil
}

// Cleanup releases everything the scenario created.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.WSConn != nil {
		errs = append(errs, testCtx.WSConn.Close())
		testCtx.WSConn = nil
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Hub != nil {
		testCtx.Hub.Close()
	}
	if testCtx.Pipeline != nil {
		errs = append(errs, testCtx.Pipeline.Close())
		testCtx.Pipeline = nil
	}
	if testCtx.TempDir != "" {
		errs = append(errs, os.RemoveAll(testCtx.TempDir))
		testCtx.TempDir = ""
	}
	return errors.Join(errs...)
}
