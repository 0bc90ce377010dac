package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/melih/lighthouse-dockerhost/internal/adapters/inventory"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
	"github.com/melih/lighthouse-dockerhost/internal/testutil"
)

const testHandle = "4f2a9c1e"

func setupAdapter(t *testing.T, resources ...domain.Resource) (*Adapter, *testutil.FakeEngine, *inventory.Memory, ports.Session, domain.ExecContext) {
	t.Helper()
	engine := testutil.NewFakeEngine(t)
	store := inventory.NewMemory(resources...)
	session, err := store.Open(context.Background())
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	ec := domain.ExecContext{
		ReservationID: "res-1",
		Host:          domain.HostResource{Name: "docker-host", Address: engine.Address()},
		Target:        domain.Target{Name: "web_1a2b", UID: testHandle},
	}
	return NewAdapter(WithTimeout(5 * time.Second)), engine, store, session, ec
}

func TestDeploy(t *testing.T) {
	adapter, engine, store, session, ec := setupAdapter(t)
	engine.Handle(http.MethodPost, "/containers/create", http.StatusCreated, `{"Id":"abc123","Warnings":[]}`)

	instance, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{
		AppName: "web",
		Image:   "nginx",
		Ports:   "80,443",
	})
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if instance.EngineContainerID != "abc123" {
		t.Errorf("expected id abc123, got %q", instance.EngineContainerID)
	}
	if !regexp.MustCompile(`^web_[0-9a-f]{4}$`).MatchString(instance.InstanceName) {
		t.Errorf("unexpected instance name %q", instance.InstanceName)
	}
	if instance.OwnerResourceName != "docker-host" {
		t.Errorf("expected owner docker-host, got %q", instance.OwnerResourceName)
	}

	reqs := engine.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 engine request, got %d", len(reqs))
	}
	body := string(reqs[0].Body)
	for _, want := range []string{`"Image":"nginx"`, `"Env":[]`, `"80/tcp":{}`, `"443/tcp":{}`, `"PublishAllPorts":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("payload missing %s: %s", want, body)
		}
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 reservation messages, got %d: %v", len(msgs), msgs)
	}
	if !strings.HasPrefix(msgs[0].Text, "sending: ") || msgs[0].ReservationID != "res-1" {
		t.Errorf("unexpected first message %+v", msgs[0])
	}
	if !strings.HasPrefix(msgs[1].Text, "response: 201") {
		t.Errorf("unexpected second message %+v", msgs[1])
	}
}

func TestDeployAppNameFromImage(t *testing.T) {
	adapter, engine, _, session, ec := setupAdapter(t)
	engine.Handle(http.MethodPost, "/containers/create", http.StatusCreated, `{"Id":"abc123"}`)

	instance, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{Image: "library/redis:7"})
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if !strings.HasPrefix(instance.InstanceName, "library_redis_7_") {
		t.Errorf("unexpected instance name %q", instance.InstanceName)
	}
}

func TestDeployDistinctNames(t *testing.T) {
	adapter, engine, _, session, ec := setupAdapter(t)
	engine.Handle(http.MethodPost, "/containers/create", http.StatusCreated, `{"Id":"abc123"}`)

	first, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{AppName: "web", Image: "nginx"})
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	second, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{AppName: "web", Image: "nginx"})
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	// collides with probability 1/65536
	if first.InstanceName == second.InstanceName {
		t.Errorf("expected distinct instance names, both were %q", first.InstanceName)
	}
}

func TestDeployTransportError(t *testing.T) {
	adapter, _, store, session, ec := setupAdapter(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	ec.Host.Address = dead.URL
	dead.Close()

	_, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{AppName: "web", Image: "nginx"})
	if !domain.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 reservation messages, got %v", msgs)
	}
	if !strings.HasPrefix(msgs[1].Text, "error: ") {
		t.Errorf("expected an error message, got %q", msgs[1].Text)
	}
}

func TestDeployBadCreateResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing id", http.StatusCreated, `{}`},
		{"blank id", http.StatusCreated, `{"Id":"  "}`},
		{"not json", http.StatusCreated, `oops`},
		{"engine failure", http.StatusInternalServerError, `{"message":"boom"}`},
		{"unknown image", http.StatusNotFound, `{"message":"No such image: nginx"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, engine, _, session, ec := setupAdapter(t)
			engine.Handle(http.MethodPost, "/containers/create", tt.status, tt.body)

			instance, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{AppName: "web", Image: "nginx"})
			if !domain.IsEngine(err) {
				t.Fatalf("expected EngineError, got %v", err)
			}
			if instance.EngineContainerID != "" {
				t.Errorf("expected no handle, got %q", instance.EngineContainerID)
			}
		})
	}
}

func TestDeployInvalidInputSendsNothing(t *testing.T) {
	adapter, engine, store, session, ec := setupAdapter(t)

	_, err := adapter.Deploy(context.Background(), session, ec, domain.DeployRequest{Image: "nginx", Ports: "eighty"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if n := len(engine.Requests()); n != 0 {
		t.Errorf("expected no engine requests, got %d", n)
	}
	if n := len(store.Messages()); n != 0 {
		t.Errorf("expected no messages, got %d", n)
	}
}

func TestStartStop(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr func(error) bool
		wantLog string
	}{
		{"started", http.StatusNoContent, "", nil, "204: "},
		{"already in state", http.StatusNotModified, "", nil, "304: "},
		{"unknown container", http.StatusNotFound, `{"message":"No such container"}`, domain.IsNotFound, "404: "},
		{"engine failure", http.StatusInternalServerError, `{"message":"boom"}`, domain.IsEngine, `500: {"message":"boom"}`},
	}
	for _, action := range []string{"start", "stop"} {
		for _, tt := range tests {
			t.Run(action+"/"+tt.name, func(t *testing.T) {
				adapter, engine, _, _, ec := setupAdapter(t)
				engine.Handle(http.MethodPost, "/containers/"+testHandle+"/"+action, tt.status, tt.body)

				call := adapter.Start
				if action == "stop" {
					call = adapter.Stop
				}
				log, err := call(context.Background(), ec.Host.Address, testHandle)
				if tt.wantErr == nil && err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tt.wantErr != nil && !tt.wantErr(err) {
					t.Fatalf("unexpected error kind: %v", err)
				}
				if !strings.HasPrefix(log, tt.wantLog) {
					t.Errorf("expected log to start with %q, got %q", tt.wantLog, log)
				}
			})
		}
	}
}

func TestDestroy(t *testing.T) {
	adapter, engine, store, session, ec := setupAdapter(t, domain.Resource{Name: "web_1a2b"})
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/stop", http.StatusNoContent, "")
	engine.Handle(http.MethodDelete, "/containers/"+testHandle, http.StatusNoContent, "")

	log, err := adapter.Destroy(context.Background(), session, ec, testHandle)
	if err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if log != "204: \n204: " {
		t.Errorf("unexpected log %q", log)
	}
	want := []string{"POST /containers/" + testHandle + "/stop", "DELETE /containers/" + testHandle}
	if got := engine.Paths(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected calls %v, got %v", want, got)
	}
	if _, ok := store.Resource("web_1a2b"); ok {
		t.Error("expected resource to be deleted")
	}
}

func TestDestroyStopFailureStillDeletes(t *testing.T) {
	adapter, engine, store, session, ec := setupAdapter(t, domain.Resource{Name: "web_1a2b"})
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/stop", http.StatusInternalServerError, `{"message":"cannot stop"}`)
	engine.Handle(http.MethodDelete, "/containers/"+testHandle, http.StatusNoContent, "")

	log, err := adapter.Destroy(context.Background(), session, ec, testHandle)
	if err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if !strings.Contains(log, `500: {"message":"cannot stop"}`) || !strings.Contains(log, "204: ") {
		t.Errorf("expected both outcomes in log, got %q", log)
	}
	if _, ok := store.Resource("web_1a2b"); ok {
		t.Error("expected resource to be deleted")
	}
}

func TestDestroyDeleteFailure(t *testing.T) {
	adapter, engine, store, session, ec := setupAdapter(t, domain.Resource{Name: "web_1a2b"})
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/stop", http.StatusNoContent, "")
	engine.Handle(http.MethodDelete, "/containers/"+testHandle, http.StatusConflict, `{"message":"in use"}`)

	log, err := adapter.Destroy(context.Background(), session, ec, testHandle)
	if !domain.IsEngine(err) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if !strings.Contains(log, `409: {"message":"in use"}`) {
		t.Errorf("expected delete outcome in log, got %q", log)
	}
	// inventory deletion is still attempted after the engine calls
	if _, ok := store.Resource("web_1a2b"); ok {
		t.Error("expected resource to be deleted")
	}
}

func TestDestroyResourceAlreadyRemoved(t *testing.T) {
	adapter, engine, _, session, ec := setupAdapter(t)
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/stop", http.StatusNoContent, "")
	engine.Handle(http.MethodDelete, "/containers/"+testHandle, http.StatusNoContent, "")

	if _, err := adapter.Destroy(context.Background(), session, ec, testHandle); err != nil {
		t.Fatalf("expected destroy to succeed without a resource record, got %v", err)
	}
}

type failingDeleteSession struct {
	ports.Session
}

func (failingDeleteSession) DeleteResource(context.Context, string) error {
	return errors.New("inventory unavailable")
}

func TestDestroyInventoryFailure(t *testing.T) {
	adapter, engine, _, session, ec := setupAdapter(t, domain.Resource{Name: "web_1a2b"})
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/stop", http.StatusNoContent, "")
	engine.Handle(http.MethodDelete, "/containers/"+testHandle, http.StatusNoContent, "")

	_, err := adapter.Destroy(context.Background(), failingDeleteSession{session}, ec, testHandle)
	if err == nil || !strings.Contains(err.Error(), "inventory unavailable") {
		t.Fatalf("expected the inventory failure to surface, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	adapter, engine, _, _, ec := setupAdapter(t)
	doc := `{"Id":"` + testHandle + `","Name":"/web","State":{"Status":"running","Running":true},` +
		`"Node":{"IP":"10.0.0.7","Name":"node-1"},` +
		`"NetworkSettings":{"Ports":{"80/tcp":[{"HostIp":"0.0.0.0","HostPort":"32768"}]}}}`
	engine.Handle(http.MethodGet, "/containers/"+testHandle+"/json", http.StatusOK, doc)

	state, err := adapter.Inspect(context.Background(), ec.Host.Address, testHandle)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if state.Node.IP != "10.0.0.7" || !state.State.Running {
		t.Errorf("unexpected state %+v", state)
	}
	if port, ok := state.HostPort("80/tcp"); !ok || port != "32768" {
		t.Errorf("expected host port 32768, got %q", port)
	}
	if string(state.Raw) != doc {
		t.Errorf("expected raw document to be kept")
	}
}

func TestInspectNotFound(t *testing.T) {
	adapter, _, _, _, ec := setupAdapter(t)

	_, err := adapter.Inspect(context.Background(), ec.Host.Address, "gone")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFetchLogs(t *testing.T) {
	adapter, engine, _, _, ec := setupAdapter(t)
	engine.Handle(http.MethodGet, "/containers/"+testHandle+"/logs", http.StatusOK, "hello\nworld\n")

	logs, err := adapter.FetchLogs(context.Background(), ec.Host.Address, testHandle)
	if err != nil {
		t.Fatalf("FetchLogs failed: %v", err)
	}
	if string(logs) != "hello\nworld\n" {
		t.Errorf("unexpected logs %q", logs)
	}
	if q := engine.Requests()[0].Query; q != "stdout=1" {
		t.Errorf("expected query stdout=1, got %q", q)
	}
}

func TestListContainers(t *testing.T) {
	adapter, engine, _, _, ec := setupAdapter(t)
	engine.Handle(http.MethodGet, "/containers/json", http.StatusOK, `[{"Id":"a"},{"Id":"b"}]`)

	raw, err := adapter.ListContainers(context.Background(), ec.Host.Address)
	if err != nil {
		t.Fatalf("ListContainers failed: %v", err)
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 2 {
		t.Errorf("unexpected list %s (%v)", raw, err)
	}
}

func TestCanceledContext(t *testing.T) {
	adapter, engine, _, _, ec := setupAdapter(t)
	engine.Handle(http.MethodPost, "/containers/"+testHandle+"/start", http.StatusNoContent, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := adapter.Start(ctx, ec.Host.Address, testHandle); !domain.IsTransport(err) {
		t.Fatalf("expected TransportError for a canceled call, got %v", err)
	}
}

func TestTimeoutBoundsSilentEngine(t *testing.T) {
	release := make(chan struct{})
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer engine.Close()
	defer close(release)

	adapter := NewAdapter(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	_, err := adapter.Start(context.Background(), engine.URL, testHandle)
	elapsed := time.Since(start)

	if !domain.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the call to give up after the timeout, took %s", elapsed)
	}
}

func TestDemuxLogs(t *testing.T) {
	var raw bytes.Buffer
	stdcopy.NewStdWriter(&raw, stdcopy.Stdout).Write([]byte("out line\n"))
	stdcopy.NewStdWriter(&raw, stdcopy.Stderr).Write([]byte("err line\n"))

	logs, err := DemuxLogs(raw.Bytes())
	if err != nil {
		t.Fatalf("DemuxLogs failed: %v", err)
	}
	if string(logs) != "out line\nerr line\n" {
		t.Errorf("unexpected logs %q", logs)
	}
}
