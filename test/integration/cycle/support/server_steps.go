package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/server"
	"github.com/MeKo-Tech/linecheck/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const wsWait = 5 * time.Second

func (testCtx *TestContext) theStatusServerIsRunning() error {
	o, err := testCtx.orchestrator()
	if err != nil {
		return err
	}
	srv := server.New(server.Config{TimeoutSec: 10}, o, testCtx.Hub, server.WithInfo(testCtx.Pipeline.Info))
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	return nil
}

func (testCtx *TestContext) url(path string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", fmt.Errorf("status server is not running")
	}
	return testCtx.HTTPServer.URL + path, nil
}

func (testCtx *TestContext) iGET(path string) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iPOST(path string) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadTheFrameFixture(name, path string) error {
	u, err := testCtx.url(path)
	if err != nil {
		return err
	}
	var fixture *testutil.SceneFixture
	for _, f := range testutil.DefaultSceneFixtures() {
		if f.Name == name {
			fixture = &f
			break
		}
	}
	if fixture == nil {
		return fmt.Errorf("unknown fixture %q", name)
	}
	img, err := testutil.RenderFixture(*fixture)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", fixture.Name+".png")
	if err != nil {
		return err
	}
	if err := imaging.Encode(part, img, imaging.PNG); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) theHTTPStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected HTTP %d, got %d: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(s string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, s) {
		return fmt.Errorf("response does not contain %q: %s", s, testCtx.LastHTTPResponse)
	}
	return nil
}

// theJSONFieldShouldBe compares a dotted path of the JSON response with
// want, using the value's default formatting.
func (testCtx *TestContext) theJSONFieldShouldBe(path, want string) error {
	var doc any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %q is not an object", path, key)
		}
		if cur, ok = m[key]; !ok {
			return fmt.Errorf("%s: missing key %q", path, key)
		}
	}
	if got := fmt.Sprint(cur); got != want {
		return fmt.Errorf("%s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (testCtx *TestContext) aWebsocketClientIsConnected() error {
	u, err := testCtx.url("/ws")
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(u, "http"), nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	testCtx.WSConn = conn
	// A status reply proves the client is registered with the hub.
	if err := testCtx.theWebsocketClientRequests("status"); err != nil {
		return err
	}
	return testCtx.theWebsocketClientShouldReceive("status")
}

func (testCtx *TestContext) theWebsocketClientRequests(kind string) error {
	if testCtx.WSConn == nil {
		return fmt.Errorf("no websocket client")
	}
	return testCtx.WSConn.WriteJSON(map[string]string{"type": kind})
}

// theWebsocketClientShouldReceive reads until a message of the given type
// arrives; other types are skipped.
func (testCtx *TestContext) theWebsocketClientShouldReceive(kind string) error {
	if testCtx.WSConn == nil {
		return fmt.Errorf("no websocket client")
	}
	if err := testCtx.WSConn.SetReadDeadline(time.Now().Add(wsWait)); err != nil {
		return err
	}
	for {
		var msg server.Message
		if err := testCtx.WSConn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("waiting for %q message: %w", kind, err)
		}
		if msg.Type == kind {
			return nil
		}
	}
}

// RegisterServerSteps registers the status server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the status server is running$`, testCtx.theStatusServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST to "([^"]*)"$`, testCtx.iPOST)
	sc.Step(`^I upload the frame fixture "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTheFrameFixture)
	sc.Step(`^the HTTP status should be (\d+)$`, testCtx.theHTTPStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^a websocket client is connected$`, testCtx.aWebsocketClientIsConnected)
	sc.Step(`^the websocket client requests a "([^"]*)"$`, testCtx.theWebsocketClientRequests)
	sc.Step(`^the websocket client should receive a "([^"]*)" message$`, testCtx.theWebsocketClientShouldReceive)
}
