package geminilive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

var tutorConfig = ports.LiveConfig{
	Model:               "gemini-2.5-flash-native-audio-preview-09-2025",
	ResponseModality:    "AUDIO",
	Voice:               "Zephyr",
	SystemInstruction:   "You are a language tutor.",
	InputTranscription:  true,
	OutputTranscription: true,
}

func TestConnectSendsSetupAndReportsOpen(t *testing.T) {
	t.Parallel()

	setups := make(chan map[string]any, 1)
	keys := make(chan string, 1)
	srv := newLiveServer(t, func(conn *websocket.Conn, r *http.Request) {
		keys <- r.URL.Query().Get("key")
		var setup map[string]any
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		setups <- setup
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		waitForClose(conn)
	})

	conn := connect(t, srv.URL)
	defer conn.Close()

	ev := nextEvent(t, conn)
	if ev.Type != ports.LiveEventOpen {
		t.Fatalf("expected open event, got %+v", ev)
	}
	if key := <-keys; key != "test-key" {
		t.Fatalf("unexpected api key %q", key)
	}

	setup := (<-setups)["setup"].(map[string]any)
	if setup["model"] != "models/gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Fatalf("unexpected model: %v", setup["model"])
	}
	gen := setup["generationConfig"].(map[string]any)
	if modalities := gen["responseModalities"].([]any); len(modalities) != 1 || modalities[0] != "AUDIO" {
		t.Fatalf("unexpected modalities: %v", modalities)
	}
	voice := gen["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if voice != "Zephyr" {
		t.Fatalf("unexpected voice: %v", voice)
	}
	parts := setup["systemInstruction"].(map[string]any)["parts"].([]any)
	if parts[0].(map[string]any)["text"] != "You are a language tutor." {
		t.Fatalf("unexpected system instruction: %v", parts)
	}
	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Fatalf("input transcription not requested")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Fatalf("output transcription not requested")
	}
}

func TestServerContentBecomesMessages(t *testing.T) {
	t.Parallel()

	srv := newLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		_ = conn.ReadJSON(&setup)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAAA"}},{"text":"thinking"}]},"outputTranscription":{"text":"Bonjour"}}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"inputTranscription":{"text":"Salut"},"turnComplete":true}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"interrupted":true}}`))
		waitForClose(conn)
	})

	conn := connect(t, srv.URL)
	defer conn.Close()

	if ev := nextEvent(t, conn); ev.Type != ports.LiveEventOpen {
		t.Fatalf("expected open, got %+v", ev)
	}

	first := nextEvent(t, conn)
	if first.Type != ports.LiveEventMessage || len(first.Message.Audio) != 1 || first.Message.Audio[0] != "AAAA" || first.Message.OutputTranscript != "Bonjour" {
		t.Fatalf("unexpected first message: %+v", first.Message)
	}
	second := nextEvent(t, conn)
	if second.Message.InputTranscript != "Salut" || !second.Message.TurnComplete {
		t.Fatalf("unexpected second message: %+v", second.Message)
	}
	third := nextEvent(t, conn)
	if !third.Message.Interrupted {
		t.Fatalf("expected interruption: %+v", third.Message)
	}
}

func TestSendRealtimeInputReachesServer(t *testing.T) {
	t.Parallel()

	received := make(chan realtimeInputFrame, 1)
	srv := newLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		_ = conn.ReadJSON(&setup)
		var frame realtimeInputFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		received <- frame
		waitForClose(conn)
	})

	conn := connect(t, srv.URL)
	defer conn.Close()

	chunk := domain.MediaChunk{Data: "AQID", MIMEType: "audio/pcm;rate=16000"}
	if err := conn.SendRealtimeInput(chunk); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case frame := <-received:
		if len(frame.RealtimeInput.MediaChunks) != 1 || frame.RealtimeInput.MediaChunks[0] != chunk {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received realtime input")
	}
}

func TestRemoteCloseCarriesCodeAndReason(t *testing.T) {
	t.Parallel()

	srv := newLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		_ = conn.ReadJSON(&setup)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "quota exceeded")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		waitForClose(conn)
	})

	conn := connect(t, srv.URL)
	defer conn.Close()

	ev := nextEvent(t, conn)
	if ev.Type != ports.LiveEventClose || ev.CloseCode != websocket.CloseInternalServerErr || ev.CloseReason != "quota exceeded" {
		t.Fatalf("unexpected close event: %+v", ev)
	}
	waitClosed(t, conn)
}

func TestLocalCloseEndsEventsQuietly(t *testing.T) {
	t.Parallel()

	srv := newLiveServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var setup map[string]any
		_ = conn.ReadJSON(&setup)
		waitForClose(conn)
	})

	conn := connect(t, srv.URL)
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	waitClosed(t, conn)
	if err := conn.SendRealtimeInput(domain.MediaChunk{Data: "AA"}); err == nil {
		t.Fatalf("send after close must fail")
	}
}

func TestConnectFailures(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{}).Connect(context.Background(), tutorConfig)
	if !errors.Is(err, domain.ErrConnectionFailure) {
		t.Fatalf("missing key: expected connection failure, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err = NewProvider(Config{APIKey: "k", URL: srv.URL}).Connect(context.Background(), tutorConfig)
	if !errors.Is(err, domain.ErrConnectionFailure) {
		t.Fatalf("rejected upgrade: expected connection failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("status missing from error: %v", err)
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	got, err := buildURL(Config{APIKey: "abc", URL: "https://example.test/ws/live"})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	if got != "wss://example.test/ws/live?key=abc" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestServerFrameSkipsNonAudioInlineData(t *testing.T) {
	t.Parallel()

	frame, err := decodeServerFrame([]byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"image/png","data":"xx"}},{"inlineData":{"data":"AAAA"}}]}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg := frame.message()
	if len(msg.Audio) != 1 || msg.Audio[0] != "AAAA" {
		t.Fatalf("unexpected audio: %v", msg.Audio)
	}

	frame, err = decodeServerFrame([]byte(`{"goAway":{"timeLeft":"10s"}}`))
	if err != nil {
		t.Fatalf("decode goAway: %v", err)
	}
	if frame.GoAway == nil || frame.GoAway.TimeLeft != "10s" || frame.message() != nil {
		t.Fatalf("unexpected goAway frame: %+v", frame)
	}
}

func newLiveServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// waitForClose keeps the server side open until the client goes away.
func waitForClose(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func connect(t *testing.T, url string) ports.LiveConnection {
	t.Helper()
	conn, err := NewProvider(Config{APIKey: "test-key", URL: url}).Connect(context.Background(), tutorConfig)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return conn
}

func nextEvent(t *testing.T, conn ports.LiveConnection) ports.LiveEvent {
	t.Helper()
	select {
	case ev, ok := <-conn.Events():
		if !ok {
			t.Fatalf("events closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for live event")
	}
	return ports.LiveEvent{}
}

func waitClosed(t *testing.T, conn ports.LiveConnection) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-conn.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("events channel never closed")
		}
	}
}
